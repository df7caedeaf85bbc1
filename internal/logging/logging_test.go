package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, sanitize bool, secrets *Secrets) *slog.Logger {
	inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewSanitizingHandler(inner, sanitize, secrets))
}

func parseLogOutput(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse log output: %v\nraw: %s", err, buf.String())
	}
	return result
}

func TestHandle_RedactsSensitiveKeys(t *testing.T) {
	keys := []string{"password", "api_token", "client_secret", "key_path", "credential", "passphrase", "Auth_Header", "SSH_PASSWORD"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			var buf bytes.Buffer
			newTestLogger(&buf, true, nil).Info("test", slog.String(key, "value"))

			result := parseLogOutput(t, &buf)
			if result[key] != redacted {
				t.Errorf("%s = %v, want %s", key, result[key], redacted)
			}
		})
	}
}

func TestHandle_NonSensitivePassesThrough(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, true, nil).Info("command finished",
		slog.String("command", "show version"),
		slog.Int("stalls", 3),
	)

	result := parseLogOutput(t, &buf)
	if result["command"] != "show version" {
		t.Errorf("command = %v", result["command"])
	}
	if result["stalls"] != float64(3) {
		t.Errorf("stalls = %v", result["stalls"])
	}
	if result["msg"] != "command finished" || result["level"] != "INFO" {
		t.Errorf("msg/level = %v/%v", result["msg"], result["level"])
	}
}

func TestHandle_SanitizeFalse_NothingRedacted(t *testing.T) {
	var buf bytes.Buffer
	secrets := &Secrets{}
	secrets.Add("hunter2")
	newTestLogger(&buf, false, secrets).Info("hunter2", slog.String("password", "hunter2"))

	result := parseLogOutput(t, &buf)
	if result["password"] != "hunter2" || result["msg"] != "hunter2" {
		t.Errorf("unsanitized output changed: %v", result)
	}
}

func TestHandle_ScrubsSecretValues(t *testing.T) {
	var buf bytes.Buffer
	secrets := &Secrets{}
	secrets.Add("hunter2", "")
	logger := newTestLogger(&buf, true, secrets)

	logger.Debug("sent hunter2", slog.String("data", `"hunter2\n"`))

	result := parseLogOutput(t, &buf)
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret leaked: %s", buf.String())
	}
	if result["msg"] != "sent "+redacted {
		t.Errorf("msg = %v", result["msg"])
	}
	if result["data"] != `"`+redacted+`\n"` {
		t.Errorf("data = %v", result["data"])
	}
}

func TestHandle_NestedGroups(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf, true, nil).Info("test",
		slog.Group("connection",
			slog.String("host", "example.com"),
			slog.String("password", "secret"),
			slog.Group("inner", slog.String("token", "tk")),
		),
	)

	result := parseLogOutput(t, &buf)
	conn, ok := result["connection"].(map[string]any)
	if !ok {
		t.Fatalf("connection group missing: %v", result)
	}
	if conn["host"] != "example.com" || conn["password"] != redacted {
		t.Errorf("connection = %v", conn)
	}
	inner, ok := conn["inner"].(map[string]any)
	if !ok || inner["token"] != redacted {
		t.Errorf("inner = %v", conn["inner"])
	}
}

func TestWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, true, nil).
		With(slog.String("secret", "x"), slog.String("session_id", "s1")).
		WithGroup("req")

	logger.Info("test", slog.String("password", "p"), slog.String("path", "/a"))

	result := parseLogOutput(t, &buf)
	if result["secret"] != redacted || result["session_id"] != "s1" {
		t.Errorf("With() attrs = %v", result)
	}
	req, ok := result["req"].(map[string]any)
	if !ok || req["password"] != redacted || req["path"] != "/a" {
		t.Errorf("group = %v", result["req"])
	}
}

func TestEnabled_DelegatesToInner(t *testing.T) {
	inner := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewSanitizingHandler(inner, true, nil)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(Options{Level: "warn", Format: "text", Output: &buf, Sanitize: true})
	if slog.Default() != logger {
		t.Error("Setup() did not install the default logger")
	}

	slog.Info("hidden")
	slog.Warn("shown", slog.String("password", "p"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "password="+redacted) {
		t.Errorf("text output = %q", out)
	}
}
