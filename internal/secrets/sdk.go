// Package secrets manages named secrets with optional per-environment
// variants. Structured values are stored as JSON and decoded on read.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/acolita/termdriver/internal/outcome"
)

// DefaultSeparator joins a key and its variant.
const DefaultSeparator = "__"

// ErrExists is returned by Create for keys that are already stored.
var ErrExists = errors.New("secret already exists")

// Parameters selects what an SDK operation works on.
type Parameters struct {
	Entries     map[string]any `json:"entries" yaml:"entries"`
	Keys        []string       `json:"keys" yaml:"keys"`
	Variant     string         `json:"variant" yaml:"variant"`
	Separator   string         `json:"separator" yaml:"separator"`
	DoNotDelete bool           `json:"do_not_delete" yaml:"do_not_delete"`
}

// StoredKey returns the backend key for key under p's variant.
func (p Parameters) StoredKey(key string) string {
	if p.Variant == "" {
		return key
	}
	sep := p.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return key + sep + p.Variant
}

// SDK runs secret operations against a Backend. Backend failures are
// reported as fatal outcome failures.
type SDK struct {
	backend Backend
}

// NewSDK creates an SDK over backend.
func NewSDK(backend Backend) *SDK {
	return &SDK{backend: backend}
}

// Create stores every entry, refusing keys that already exist. It returns
// the stored values by entry key.
func (s *SDK) Create(p Parameters) (map[string]string, error) {
	return s.write(p, true)
}

// Update overwrites every entry, which must already exist.
func (s *SDK) Update(p Parameters) (map[string]string, error) {
	return s.write(p, false)
}

func (s *SDK) write(p Parameters, create bool) (map[string]string, error) {
	result := make(map[string]string, len(p.Entries))
	for _, key := range sortedKeys(p.Entries) {
		stored := p.StoredKey(key)
		value, err := serialize(p.Entries[key])
		if err != nil {
			return result, outcome.FatalErr(fmt.Errorf("secret %q: %w", key, err))
		}

		_, err = s.backend.Get(stored)
		switch {
		case create && err == nil:
			return result, outcome.FatalErr(fmt.Errorf("secret %q: %w", stored, ErrExists))
		case !create && errors.Is(err, ErrNotFound):
			return result, outcome.FatalErr(fmt.Errorf("secret %q: %w", stored, ErrNotFound))
		case err != nil && !errors.Is(err, ErrNotFound):
			return result, outcome.FatalErr(err)
		}

		slog.Debug("writing secret", slog.String("name", stored))
		if err := s.backend.Set(stored, value); err != nil {
			return result, outcome.FatalErr(err)
		}
		result[key] = value
	}
	return result, nil
}

// Read returns the values of p.Keys, JSON-decoded where possible.
func (s *SDK) Read(p Parameters) (map[string]any, error) {
	result := make(map[string]any, len(p.Keys))
	for _, key := range p.Keys {
		stored := p.StoredKey(key)
		slog.Debug("reading secret", slog.String("name", stored))
		raw, err := s.backend.Get(stored)
		if err != nil {
			return nil, outcome.FatalErr(fmt.Errorf("secret %q: %w", stored, err))
		}
		result[key] = parse(raw)
	}
	return result, nil
}

// Delete removes keys. Missing keys are skipped. DoNotDelete turns the call
// into a no-op.
func (s *SDK) Delete(p Parameters, keys []string) error {
	if p.DoNotDelete {
		slog.Info("do_not_delete set, skipping deletion", slog.Int("count", len(keys)))
		return nil
	}
	for _, key := range keys {
		stored := p.StoredKey(key)
		slog.Debug("deleting secret", slog.String("name", stored))
		if err := s.backend.Delete(stored); err != nil && !errors.Is(err, ErrNotFound) {
			return outcome.FatalErr(err)
		}
	}
	return nil
}

// serialize stores strings as they are and everything else as JSON.
func serialize(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return string(data), nil
}

func parse(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
