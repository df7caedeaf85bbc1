package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/acolita/termdriver/internal/outcome"
)

// StatusError reports a response whose status code was not successful.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// ExpectationError reports a response value that did not match a
// response_expectation or matched a nonrecoverable_response entry.
type ExpectationError struct {
	Path []string
	Want string
	Got  any
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("response %s = %v, expected %q", strings.Join(e.Path, "."), e.Got, e.Want)
}

// Executor runs templates against one base URL.
type Executor struct {
	baseURL string
	client  *http.Client
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.client = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.client.Timeout = d }
}

// NewExecutor creates an Executor. Call paths are resolved against baseURL
// unless they are absolute URLs.
func NewExecutor(baseURL string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the calls of tmpl in order and returns the merged results.
// Failures are *outcome.Failure values: recoverable for transport errors,
// recoverable status codes and unmet expectations, fatal otherwise. Results
// of the calls that completed are returned alongside a failure.
func (e *Executor) Execute(ctx context.Context, tmpl *Template) (map[string]any, error) {
	result := make(map[string]any)
	for i, call := range tmpl.Calls {
		resp, err := e.do(ctx, call)
		if err != nil {
			return result, err
		}
		if err := check(call, resp); err != nil {
			return result, err
		}
		slog.Debug("rest call done", slog.Int("index", i), slog.String("method", call.Method), slog.String("path", call.Path))
		translate(resp, call.ResponseTranslation, result)
	}
	return result, nil
}

func (e *Executor) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return e.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (e *Executor) do(ctx context.Context, call Call) (any, error) {
	var body io.Reader
	contentType := ""
	switch {
	case call.RawPayload != "":
		body = strings.NewReader(call.RawPayload)
	case call.Payload != nil:
		data, err := json.Marshal(call.Payload)
		if err != nil {
			return nil, outcome.FatalErr(fmt.Errorf("encode payload: %w", err))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	url := e.url(call.Path)
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(call.Method), url, body)
	if err != nil {
		return nil, outcome.FatalErr(fmt.Errorf("build request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, outcome.RecoverableErr(fmt.Errorf("%s %s: %w", req.Method, url, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcome.RecoverableErr(fmt.Errorf("read response: %w", err))
	}

	if !successful(call, resp.StatusCode) {
		serr := &StatusError{Method: req.Method, URL: url, Code: resp.StatusCode, Body: string(data)}
		if slices.Contains(call.RecoverableCodes, resp.StatusCode) {
			return nil, outcome.RecoverableErr(serr)
		}
		return nil, outcome.FatalErr(serr)
	}

	if call.ResponseFormat == "raw" || len(bytes.TrimSpace(data)) == 0 {
		return string(data), nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, outcome.FatalErr(fmt.Errorf("decode response of %s %s: %w", req.Method, url, err))
	}
	return parsed, nil
}

func successful(call Call, code int) bool {
	if len(call.SuccessfulCodes) > 0 {
		return slices.Contains(call.SuccessfulCodes, code)
	}
	return code < 400
}

// check applies nonrecoverable_response before response_expectation.
func check(call Call, resp any) error {
	for _, entry := range call.NonrecoverableResponse {
		if path, want, ok := splitEntry(entry); ok {
			if got, found := Lookup(resp, path); found && fmt.Sprint(got) == want {
				return outcome.FatalErr(&ExpectationError{Path: path, Want: want, Got: got})
			}
		}
	}
	for _, entry := range call.ResponseExpectation {
		if path, want, ok := splitEntry(entry); ok {
			got, found := Lookup(resp, path)
			if !found || fmt.Sprint(got) != want {
				return outcome.RecoverableErr(&ExpectationError{Path: path, Want: want, Got: got})
			}
		}
	}
	return nil
}

func splitEntry(entry []any) ([]string, string, bool) {
	if len(entry) < 2 {
		return nil, "", false
	}
	return toPath(entry[:len(entry)-1]), fmt.Sprint(entry[len(entry)-1]), true
}

// translate copies parts of resp into out following tr. Without a
// translation a map response is merged as is and anything else is stored
// under "result".
func translate(resp, tr any, out map[string]any) {
	switch t := tr.(type) {
	case nil:
		if m, ok := resp.(map[string]any); ok {
			for k, v := range m {
				out[k] = v
			}
			return
		}
		out["result"] = resp
	case map[string]any:
		m, ok := resp.(map[string]any)
		if !ok {
			return
		}
		for k, sub := range t {
			if v, ok := m[k]; ok {
				translate(v, sub, out)
			}
		}
	case []any:
		if isPath(t) {
			setPath(out, toPath(t), resp)
			return
		}
		list, ok := resp.([]any)
		if !ok {
			return
		}
		for i, sub := range t {
			if i < len(list) {
				translate(list[i], sub, out)
			}
		}
	}
}

func isPath(t []any) bool {
	if len(t) == 0 {
		return false
	}
	for _, e := range t {
		if _, ok := e.(string); !ok {
			return false
		}
	}
	return true
}
