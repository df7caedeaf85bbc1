// Package rest executes templated sequences of HTTP calls and maps their
// responses onto a result tree.
package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Call is one HTTP request of a template.
type Call struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Headers map[string]string `yaml:"headers"`
	// Payload is sent as JSON. RawPayload is sent verbatim and wins when
	// both are set.
	Payload    any    `yaml:"payload"`
	RawPayload string `yaml:"raw_payload"`

	ResponseFormat string `yaml:"response_format"` // json (default) or raw
	// ResponseTranslation mirrors the response shape; its leaves are lists
	// naming where in the result the value under that position is stored.
	ResponseTranslation any `yaml:"response_translation"`
	// Each entry is a path into the response followed by the expected value.
	ResponseExpectation    [][]any `yaml:"response_expectation"`
	NonrecoverableResponse [][]any `yaml:"nonrecoverable_response"`

	RecoverableCodes []int `yaml:"recoverable_codes"`
	SuccessfulCodes  []int `yaml:"successful_codes"`
}

// Template is an ordered list of calls.
type Template struct {
	Calls []Call `yaml:"rest_calls"`
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// Render expands text with params and parses the result as a template.
// Referencing a parameter that is not set is an error.
func Render(name, text string, params map[string]any) (*Template, error) {
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}

	var tmpl Template
	if err := yaml.Unmarshal(buf.Bytes(), &tmpl); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", name, err)
	}
	for i, c := range tmpl.Calls {
		if c.Path == "" {
			return nil, fmt.Errorf("template %s: rest_calls[%d]: path is required", name, i)
		}
		if c.Method == "" {
			tmpl.Calls[i].Method = "GET"
		}
	}
	return &tmpl, nil
}

// LoadTemplate reads name from fsys and renders it.
func LoadTemplate(fsys fs.FS, name string, params map[string]any) (*Template, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Render(name, string(data), params)
}
