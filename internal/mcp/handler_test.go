package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/connect"
	"github.com/acolita/termdriver/internal/logging"
	"github.com/acolita/termdriver/internal/rest"
	"github.com/acolita/termdriver/internal/secrets"
	"github.com/acolita/termdriver/internal/session"
	"github.com/acolita/termdriver/internal/testing/fakes/fakechannel"
	"github.com/acolita/termdriver/internal/testing/fakes/fakeclock"
	"github.com/acolita/termdriver/internal/testing/fakes/fakedialog"
	"github.com/acolita/termdriver/internal/testing/fakes/fakefs"
)

// --- Test helpers ---

type testEnv struct {
	srv      *Server
	fs       *fakefs.FS
	clock    *fakeclock.Clock
	channels []*fakechannel.Channel
	requests []connect.Request
	openErr  error
}

// newTestEnv builds a server whose connections are served by the queued
// fake channels, in order.
func newTestEnv(t *testing.T, cfg *config.Config, opts ...ServerOption) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	env := &testEnv{
		fs:    fakefs.New(),
		clock: fakeclock.New(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
	opener := func(conn config.ConnectionConfig, req connect.Request) (session.ChannelFactory, error) {
		env.requests = append(env.requests, req)
		f := fakechannel.NewFactory(nil)
		f.Name = req.Endpoint()
		if env.openErr != nil {
			f.Err = env.openErr
			return f, nil
		}
		if len(env.channels) == 0 {
			return nil, errors.New("no fake channel queued")
		}
		f.Channel, env.channels = env.channels[0], env.channels[1:]
		return f, nil
	}
	base := []ServerOption{
		WithFileSystem(env.fs),
		WithClock(env.clock),
		WithChannelOpener(opener),
		WithSecretsBackend(secrets.NewMemoryBackend()),
	}
	env.srv = NewServer(cfg, append(base, opts...)...)
	t.Cleanup(env.srv.Shutdown)
	return env
}

func (e *testEnv) queue(ch *fakechannel.Channel) *fakechannel.Channel {
	e.channels = append(e.channels, ch)
	return ch
}

func makeRequest(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	tc, ok := mcpgo.AsTextContent(result.Content[0])
	if !ok {
		return ""
	}
	return tc.Text
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult) map[string]any {
	t.Helper()
	text := resultText(result)
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		t.Fatalf("failed to parse result JSON: %v (text: %s)", err, text)
	}
	return m
}

func connectSession(t *testing.T, e *testEnv, args map[string]any) string {
	t.Helper()
	result, err := e.srv.handleTerminalConnect(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("terminal_connect failed: %s", resultText(result))
	}
	return resultJSON(t, result)["session_id"].(string)
}

var routerArgs = map[string]any{"host": "10.0.0.1", "user": "admin", "password": "pw"}

// --- terminal_connect ---

func TestHandleTerminalConnect_MissingParams(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing host", map[string]any{"user": "admin"}},
		{"missing user", map[string]any{"host": "10.0.0.1"}},
		{"bad markers", map[string]any{"host": "h", "user": "u", "prompt_markers": "[unclosed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.srv.handleTerminalConnect(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
		})
	}
}

func TestHandleTerminalConnect_Success(t *testing.T) {
	e := newTestEnv(t, nil)
	e.queue(fakechannel.New().AddResponse("Welcome\r\nrouter# "))

	result, err := e.srv.handleTerminalConnect(context.Background(), makeRequest(map[string]any{
		"host":           "10.0.0.1",
		"user":           "admin",
		"prompt_markers": `["#"]`,
		"log_file":       "/logs/router.log",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := resultJSON(t, result)
	if m["hostname"] != "router" || m["state"] != "ready" {
		t.Errorf("result = %v", m)
	}
	if m["endpoint"] != "admin@10.0.0.1:22" {
		t.Errorf("endpoint = %v", m["endpoint"])
	}
	if got := e.requests[0].PromptMarkers; len(got) != 1 || got[0] != "#" {
		t.Errorf("prompt markers = %v", got)
	}

	data, err := e.fs.ReadFile("/logs/router.log")
	if err != nil || !strings.Contains(string(data), "Welcome") {
		t.Errorf("transcript = %q, %v", data, err)
	}
}

func TestHandleTerminalConnect_ConfiguredHost(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Hosts = []config.HostConfig{{Name: "core", Host: "192.0.2.1", Port: 2222, User: "ops", PasswordEnv: "CORE_PW"}}
	e := newTestEnv(t, cfg)
	e.fs.SetEnv("CORE_PW", "from-env")
	e.queue(fakechannel.New().AddResponse("core$ "))

	connectSession(t, e, map[string]any{"host": "core"})

	req := e.requests[0]
	if req.Host != "192.0.2.1" || req.Port != 2222 || req.User != "ops" || req.Password != "from-env" {
		t.Errorf("request = %+v", req)
	}
}

func TestHandleTerminalConnect_RegistersPasswordWithLogScrubber(t *testing.T) {
	sec := &logging.Secrets{}
	e := newTestEnv(t, nil, WithLogSecrets(sec))
	e.queue(fakechannel.New().AddResponse("r1# "))

	connectSession(t, e, map[string]any{"host": "h", "user": "u", "password": "hunter2"})

	var buf strings.Builder
	logger := slog.New(logging.NewSanitizingHandler(slog.NewTextHandler(&buf, nil), true, sec))
	logger.Info("login with hunter2")
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("password leaked into log: %s", buf.String())
	}
}

func TestHandleTerminalConnect_AuthLockout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Security.MaxAuthFailures = 2
	e := newTestEnv(t, cfg)
	e.openErr = errors.New("permission denied")

	for i := 0; i < 2; i++ {
		result, _ := e.srv.handleTerminalConnect(context.Background(), makeRequest(routerArgs))
		if !result.IsError {
			t.Fatalf("attempt %d should fail", i)
		}
	}

	result, _ := e.srv.handleTerminalConnect(context.Background(), makeRequest(routerArgs))
	if !result.IsError || !strings.Contains(resultText(result), "locked") {
		t.Fatalf("third attempt = %q, want lockout", resultText(result))
	}
	if len(e.requests) != 2 {
		t.Errorf("opener called %d times, want 2", len(e.requests))
	}

	e.clock.Advance(cfg.Security.AuthLockoutDuration + time.Second)
	e.openErr = nil
	e.queue(fakechannel.New().AddResponse("r1# "))
	connectSession(t, e, routerArgs)
}

func TestHandleTerminalConnect_MaxSessions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Security.MaxSessions = 1
	e := newTestEnv(t, cfg)
	e.queue(fakechannel.New().AddResponse("a# "))
	e.queue(fakechannel.New().AddResponse("b# "))

	connectSession(t, e, routerArgs)
	result, _ := e.srv.handleTerminalConnect(context.Background(), makeRequest(routerArgs))
	if !result.IsError || !strings.Contains(resultText(result), "max sessions") {
		t.Errorf("second connect = %q", resultText(result))
	}
}

// --- terminal_run ---

func TestHandleTerminalRun_Success(t *testing.T) {
	e := newTestEnv(t, nil)
	e.queue(fakechannel.New().
		AddResponse("router# ").
		AddResponseAfter("show version\n", "show version\r\nVersion 1.2\r\nrouter# "))
	id := connectSession(t, e, routerArgs)

	result, err := e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{
		"session_id": id,
		"command":    "show version",
		"errors":     `["%"]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := resultJSON(t, result)
	if m["status"] != "success" || m["output"] != "Version 1.2" || m["hostname"] != "router" {
		t.Errorf("result = %v", m)
	}
	if m["closed"] != false {
		t.Errorf("closed = %v", m["closed"])
	}
}

func TestHandleTerminalRun_AnswersQuestions(t *testing.T) {
	e := newTestEnv(t, nil)
	ch := e.queue(fakechannel.New().
		AddResponse("r1# ").
		AddResponseAfter("reload\n", "reload\r\nProceed? [y/n]").
		AddResponseAfter("y\n", "y\r\nReloading\r\nr1# "))
	id := connectSession(t, e, routerArgs)

	result, _ := e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{
		"session_id": id,
		"command":    "reload",
		"responses":  []any{map[string]any{"question": "[y/n]", "answer": "y", "newline": true}},
	}))
	m := resultJSON(t, result)
	if m["status"] != "success" {
		t.Errorf("result = %v", m)
	}
	if !strings.Contains(ch.Written(), "y\n") {
		t.Errorf("written = %q, want the answer", ch.Written())
	}
}

func TestHandleTerminalRun_ErrorMarkerClosesSession(t *testing.T) {
	e := newTestEnv(t, nil)
	ch := e.queue(fakechannel.New().
		AddResponse("r1# ").
		AddResponseAfter("shw\n", "shw\r\n% Invalid input\r\nr1# "))
	id := connectSession(t, e, routerArgs)

	result, _ := e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{
		"session_id": id,
		"command":    "shw",
		"errors":     `["%"]`,
	}))
	m := resultJSON(t, result)
	if m["status"] != "recoverable" || m["severity"] != "error" || m["marker"] != "%" || m["closed"] != true {
		t.Errorf("result = %v", m)
	}
	if !ch.IsClosed() {
		t.Error("channel should be closed")
	}

	result, _ = e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{"session_id": id, "command": "x"}))
	if !result.IsError {
		t.Error("closed session should be gone")
	}
}

func TestHandleTerminalRun_Blocked(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Security.CommandBlocklist = []string{`^write\s+erase`}
	e := newTestEnv(t, cfg)
	ch := e.queue(fakechannel.New().AddResponse("r1# "))
	id := connectSession(t, e, routerArgs)

	result, _ := e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{
		"session_id": id,
		"command":    "write erase",
	}))
	if !result.IsError || !strings.Contains(resultText(result), "rejected") {
		t.Errorf("result = %q, want rejected", resultText(result))
	}
	if ch.Written() != "" {
		t.Errorf("blocked command reached the channel: %q", ch.Written())
	}
}

func TestHandleTerminalRun_Validation(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing session", map[string]any{"command": "ls"}},
		{"missing command", map[string]any{"session_id": "sess_x"}},
		{"unknown session", map[string]any{"session_id": "sess_x", "command": "ls"}},
		{"bad responses", map[string]any{"session_id": "sess_x", "command": "ls", "responses": `[{"answer": "y"}]`}},
		{"unknown preset", map[string]any{"session_id": "sess_x", "command": "ls", "responses": `[{"preset": "nope"}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.srv.handleTerminalRun(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
		})
	}
}

// --- terminal_close / terminal_list ---

func TestHandleTerminalCloseAndList(t *testing.T) {
	e := newTestEnv(t, nil)
	ch := e.queue(fakechannel.New().AddResponse("r1# "))
	id := connectSession(t, e, routerArgs)

	list, _ := e.srv.handleTerminalList(context.Background(), makeRequest(nil))
	if !strings.Contains(resultText(list), id) {
		t.Errorf("list = %s, want %s", resultText(list), id)
	}

	result, _ := e.srv.handleTerminalClose(context.Background(), makeRequest(map[string]any{"session_id": id}))
	if result.IsError {
		t.Fatalf("close failed: %s", resultText(result))
	}
	if !ch.IsClosed() {
		t.Error("channel should be closed")
	}

	result, _ = e.srv.handleTerminalClose(context.Background(), makeRequest(map[string]any{"session_id": id}))
	if !result.IsError {
		t.Error("second close should fail")
	}
	result, _ = e.srv.handleTerminalClose(context.Background(), makeRequest(nil))
	if !result.IsError {
		t.Error("close without id should fail")
	}
}

func TestPruneClosesIdleSessions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Security.IdleTimeout = 10 * time.Minute
	e := newTestEnv(t, cfg)
	ch := e.queue(fakechannel.New().AddResponse("r1# "))
	connectSession(t, e, routerArgs)

	e.clock.Advance(11 * time.Minute)
	e.srv.prune()

	if !ch.IsClosed() || e.srv.sessions.SessionCount() != 0 {
		t.Error("idle session should be closed")
	}
}

// --- recording ---

func TestHandleTerminalConnect_Recording(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Recording.Enabled = true
	cfg.Recording.Path = "/rec"
	e := newTestEnv(t, cfg)
	e.queue(fakechannel.New().
		AddResponse("r1# ").
		AddResponseAfter("enable\n", "enable\r\nPassword: ").
		AddResponseAfter("pw\n", "\r\nr1# "))
	id := connectSession(t, e, routerArgs)

	e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{
		"session_id": id,
		"command":    "enable",
		"responses":  `[{"question": "Password:", "answer": "pw", "newline": true}]`,
	}))
	e.srv.handleTerminalClose(context.Background(), makeRequest(map[string]any{"session_id": id}))

	var cast string
	for _, name := range e.fs.Files() {
		if strings.HasPrefix(name, "/rec/"+id) {
			data, _ := e.fs.ReadFile(name)
			cast = string(data)
		}
	}
	if cast == "" {
		t.Fatalf("no recording among %v", e.fs.Files())
	}
	if strings.Contains(cast, `"pw\n"`) {
		t.Error("password was recorded in clear")
	}
}

// --- config hot reload ---

func TestUpdateConfig(t *testing.T) {
	e := newTestEnv(t, nil)
	ch := e.queue(fakechannel.New().AddResponse("r1# ").AddResponseAfter("reload\n", "reload\r\nr1# "))
	id := connectSession(t, e, routerArgs)

	cfg := config.DefaultConfig()
	cfg.Security.CommandBlocklist = []string{`^reload`}
	e.srv.UpdateConfig(cfg)

	result, _ := e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{"session_id": id, "command": "reload"}))
	if !result.IsError {
		t.Error("reload should be blocked after the update")
	}
	if ch.Written() != "" {
		t.Errorf("written = %q", ch.Written())
	}

	bad := config.DefaultConfig()
	bad.Security.CommandBlocklist = []string{`(`}
	e.srv.UpdateConfig(bad)
	result, _ = e.srv.handleTerminalRun(context.Background(), makeRequest(map[string]any{"session_id": id, "command": "reload"}))
	if !result.IsError {
		t.Error("invalid update should keep the previous filter")
	}
}

// --- terminal_host_add ---

func TestHandleTerminalHostAdd(t *testing.T) {
	args := map[string]any{"name": "core", "host": "192.0.2.1", "user": "ops", "password_env": "CORE_PW"}

	t.Run("no config path", func(t *testing.T) {
		e := newTestEnv(t, nil, WithDialogProvider(fakedialog.New()))
		result, _ := e.srv.handleTerminalHostAdd(context.Background(), makeRequest(args))
		if !result.IsError {
			t.Error("expected error without config path")
		}
	})

	t.Run("missing params", func(t *testing.T) {
		e := newTestEnv(t, nil, WithDialogProvider(fakedialog.New()), WithConfigPath("/cfg/config.yaml"))
		result, _ := e.srv.handleTerminalHostAdd(context.Background(), makeRequest(map[string]any{"name": "core"}))
		if !result.IsError {
			t.Error("expected error for missing host")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		dp := fakedialog.New()
		e := newTestEnv(t, nil, WithDialogProvider(dp), WithConfigPath("/cfg/config.yaml"))
		result, _ := e.srv.handleTerminalHostAdd(context.Background(), makeRequest(args))
		if resultJSON(t, result)["status"] != "cancelled" {
			t.Errorf("result = %s", resultText(result))
		}
		if len(dp.Confirms()) != 1 {
			t.Errorf("confirms = %v", dp.Confirms())
		}
		if _, err := e.fs.ReadFile("/cfg/config.yaml"); err == nil {
			t.Error("config should not be saved")
		}
	})

	t.Run("saved", func(t *testing.T) {
		dp := fakedialog.New()
		dp.Confirmed = true
		e := newTestEnv(t, nil, WithDialogProvider(dp), WithConfigPath("/cfg/config.yaml"))
		result, _ := e.srv.handleTerminalHostAdd(context.Background(), makeRequest(args))
		if resultJSON(t, result)["status"] != "saved" {
			t.Fatalf("result = %s", resultText(result))
		}

		cfg, err := config.Load("/cfg/config.yaml", config.WithFileSystem(e.fs), config.WithEnvironment(map[string]string{}))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		h, ok := cfg.FindHost("core")
		if !ok || h.PasswordEnv != "CORE_PW" || h.Port != 22 {
			t.Errorf("saved host = %+v, %v", h, ok)
		}

		result, _ = e.srv.handleTerminalHostAdd(context.Background(), makeRequest(args))
		if !result.IsError {
			t.Error("duplicate host should fail")
		}
	})
}

// --- secrets ---

func TestSecretTools(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	result, _ := e.srv.handleSecretCreate(ctx, makeRequest(map[string]any{
		"entries": `{"enable": "cisco", "snmp": {"community": "public"}}`,
		"variant": "lab",
	}))
	if result.IsError {
		t.Fatalf("create failed: %s", resultText(result))
	}

	result, _ = e.srv.handleSecretCreate(ctx, makeRequest(map[string]any{
		"entries": `{"enable": "again"}`,
		"variant": "lab",
	}))
	if !result.IsError {
		t.Error("create over an existing key should fail")
	}

	result, _ = e.srv.handleSecretRead(ctx, makeRequest(map[string]any{
		"keys":    []any{"enable", "snmp"},
		"variant": "lab",
	}))
	m := resultJSON(t, result)
	if m["enable"] != "cisco" {
		t.Errorf("enable = %v", m["enable"])
	}
	if snmp, _ := m["snmp"].(map[string]any); snmp["community"] != "public" {
		t.Errorf("snmp = %v", m["snmp"])
	}

	result, _ = e.srv.handleSecretUpdate(ctx, makeRequest(map[string]any{"entries": `{"enable": "new"}`, "variant": "lab"}))
	if result.IsError {
		t.Fatalf("update failed: %s", resultText(result))
	}

	result, _ = e.srv.handleSecretDelete(ctx, makeRequest(map[string]any{"keys": `["enable"]`, "variant": "lab", "do_not_delete": true}))
	if resultJSON(t, result)["status"] != "skipped" {
		t.Errorf("do_not_delete result = %s", resultText(result))
	}
	result, _ = e.srv.handleSecretDelete(ctx, makeRequest(map[string]any{"keys": `["enable", "snmp"]`, "variant": "lab"}))
	if result.IsError {
		t.Fatalf("delete failed: %s", resultText(result))
	}

	result, _ = e.srv.handleSecretRead(ctx, makeRequest(map[string]any{"keys": `["enable"]`, "variant": "lab"}))
	if !result.IsError {
		t.Error("read after delete should fail")
	}
}

func TestSecretTools_Validation(t *testing.T) {
	e := newTestEnv(t, nil)
	if r, _ := e.srv.handleSecretCreate(context.Background(), makeRequest(nil)); !r.IsError {
		t.Error("create without entries should fail")
	}
	if r, _ := e.srv.handleSecretRead(context.Background(), makeRequest(nil)); !r.IsError {
		t.Error("read without keys should fail")
	}
}

// --- rest_execute ---

func TestHandleRESTExecute(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/devices/r1":
			w.Write([]byte(`{"model": "asr", "serial": "X1"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer api.Close()

	cfg := config.DefaultConfig()
	cfg.REST.BaseURL = api.URL
	templates := fstest.MapFS{
		"device.yaml": {Data: []byte("rest_calls:\n  - path: /devices/{{.name}}\n    response_translation:\n      model: [model]\n")},
		"busy.yaml":   {Data: []byte("rest_calls:\n  - path: /busy\n    recoverable_codes: [503]\n")},
	}
	e := newTestEnv(t, cfg, WithTemplates(templates), WithRESTOptions(rest.WithHTTPClient(api.Client())))

	result, _ := e.srv.handleRESTExecute(context.Background(), makeRequest(map[string]any{
		"template_file": "device.yaml",
		"params":        `{"name": "r1"}`,
	}))
	m := resultJSON(t, result)
	if m["model"] != "asr" || m["serial"] != nil {
		t.Errorf("result = %v", m)
	}

	result, _ = e.srv.handleRESTExecute(context.Background(), makeRequest(map[string]any{"template_file": "busy.yaml"}))
	if !result.IsError || !strings.HasPrefix(resultText(result), "recoverable") {
		t.Errorf("busy result = %q", resultText(result))
	}

	result, _ = e.srv.handleRESTExecute(context.Background(), makeRequest(map[string]any{
		"templates": `[{"template_file": "dev*.yaml", "save_to": "device"}]`,
		"params":    `{"name": "r1"}`,
	}))
	m = resultJSON(t, result)
	if dev, _ := m["device"].(map[string]any); dev["model"] != "asr" {
		t.Errorf("bunch result = %v", m)
	}

	result, _ = e.srv.handleRESTExecute(context.Background(), makeRequest(nil))
	if !result.IsError {
		t.Error("missing template should fail")
	}
}

func TestDecodeArg(t *testing.T) {
	var list []string
	if err := decodeArg(makeRequest(map[string]any{"k": `["a", "b"]`}), "k", &list); err != nil || len(list) != 2 {
		t.Errorf("JSON string: %v, %v", list, err)
	}
	list = nil
	if err := decodeArg(makeRequest(map[string]any{"k": []any{"a"}}), "k", &list); err != nil || len(list) != 1 {
		t.Errorf("structured: %v, %v", list, err)
	}
	list = nil
	if err := decodeArg(makeRequest(map[string]any{"k": "  "}), "k", &list); err != nil || list != nil {
		t.Errorf("blank: %v, %v", list, err)
	}
	if err := decodeArg(makeRequest(map[string]any{"k": `{"not": "a list"}`}), "k", &list); err == nil {
		t.Error("mismatched shape should fail")
	}
}
