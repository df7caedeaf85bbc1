package rest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"

	"github.com/bmatcuk/doublestar/v4"
)

// BunchItem selects templates by glob and says how to parameterize them.
type BunchItem struct {
	TemplateFile     string              `yaml:"template_file" json:"template_file"`
	Params           map[string]any      `yaml:"params" json:"params"`
	ParamsAttributes map[string][]string `yaml:"params_attributes" json:"params_attributes"`
	SaveTo           string              `yaml:"save_to" json:"save_to"`
}

// ExecuteFile loads one template from fsys, renders it with props overlaid
// by params and executes it.
func (e *Executor) ExecuteFile(ctx context.Context, fsys fs.FS, name string, props, params map[string]any) (map[string]any, error) {
	merged := maps.Clone(props)
	if merged == nil {
		merged = make(map[string]any)
	}
	maps.Copy(merged, params)

	tmpl, err := LoadTemplate(fsys, name, merged)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, tmpl)
}

// Bunch executes items in order. Every template matched by an item's glob
// is rendered with the item params, the attribute-derived params and props,
// props winning. Results are merged into props, under SaveTo when set, so
// later templates can reference them. The final props are returned.
func (e *Executor) Bunch(ctx context.Context, fsys fs.FS, items []BunchItem, props map[string]any) (map[string]any, error) {
	state := maps.Clone(props)
	if state == nil {
		state = make(map[string]any)
	}
	if len(items) == 0 {
		slog.Debug("no templates to execute")
		return state, nil
	}

	for _, item := range items {
		names, err := doublestar.Glob(fsys, item.TemplateFile)
		if err != nil {
			return state, fmt.Errorf("glob %q: %w", item.TemplateFile, err)
		}
		if len(names) == 0 {
			return state, fmt.Errorf("no template matches %q", item.TemplateFile)
		}

		for _, name := range names {
			slog.Info("processing template", slog.String("template", name))
			params := make(map[string]any)
			maps.Copy(params, item.Params)
			maps.Copy(params, ParamsFromAttributes(state, item.ParamsAttributes))
			maps.Copy(params, state)

			tmpl, err := LoadTemplate(fsys, name, params)
			if err != nil {
				return state, err
			}
			result, err := e.Execute(ctx, tmpl)
			if err != nil {
				return state, fmt.Errorf("template %s: %w", name, err)
			}
			if item.SaveTo != "" {
				saved, _ := state[item.SaveTo].(map[string]any)
				if saved == nil {
					saved = make(map[string]any)
				}
				maps.Copy(saved, result)
				state[item.SaveTo] = saved
			} else {
				maps.Copy(state, result)
			}
		}
	}
	return state, nil
}
