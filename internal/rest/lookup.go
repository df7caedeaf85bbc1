package rest

import (
	"fmt"
	"strconv"
)

// Lookup walks tree along path. Map levels are indexed by key and list
// levels by the decimal index in the path element. It reports false when a
// level is missing or has the wrong shape.
func Lookup(tree any, path []string) (any, bool) {
	cur := tree
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ParamsFromAttributes resolves each named path against props. Paths that
// do not resolve yield nil values.
func ParamsFromAttributes(props map[string]any, attrs map[string][]string) map[string]any {
	params := make(map[string]any, len(attrs))
	for name, path := range attrs {
		v, _ := Lookup(props, path)
		params[name] = v
	}
	return params
}

// setPath stores value in out under the nested keys of path.
func setPath(out map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	cur := out
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func toPath(elems []any) []string {
	path := make([]string, len(elems))
	for i, e := range elems {
		path[i] = fmt.Sprint(e)
	}
	return path
}
