package recording

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/acolita/termdriver/internal/testing/fakes/fakeclock"
	"github.com/acolita/termdriver/internal/testing/fakes/fakefs"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func readFile(t *testing.T, fs *fakefs.FS, path string) string {
	t.Helper()
	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestTranscript_SplitsDirections(t *testing.T) {
	fs := fakefs.New()
	tr := NewTranscript("/var/log/td/router.log", fs)

	tr.Inbound([]byte("Welcome\r\n"))
	tr.Outbound([]byte("show version\n"))
	tr.Inbound([]byte("router# "))

	if got := readFile(t, fs, "/var/log/td/router.log"); got != "Welcome\r\nrouter# " {
		t.Errorf("inbound = %q", got)
	}
	if got := readFile(t, fs, "/var/log/td/router.log.in"); got != "show version\n" {
		t.Errorf("outbound = %q", got)
	}
	if !fs.IsDir("/var/log/td") {
		t.Error("parent directory was not created")
	}
}

func TestTranscript_WriteFailuresAreSwallowed(t *testing.T) {
	fs := fakefs.New()
	fs.FailWrites(true)
	tr := NewTranscript("/logs/x.log", fs)

	tr.Inbound([]byte("data"))
	tr.Outbound([]byte("cmd\n"))

	if len(fs.Files()) != 0 {
		t.Errorf("files = %v, want none", fs.Files())
	}

	fs.FailWrites(false)
	tr.Inbound([]byte("later"))
	if got := readFile(t, fs, "/logs/x.log"); got != "later" {
		t.Errorf("inbound after recovery = %q", got)
	}
}

func TestEventMarshalJSON(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Time: 1.5, Type: "o", Data: "hello"}, `[1.5,"o","hello"]`},
		{Event{Time: 0, Type: "i", Data: "ls\r\n"}, `[0,"i","ls\r\n"]`},
		{Event{Time: 1, Type: "o", Data: `"quoted" \x`}, `[1,"o","\"quoted\" \\x"]`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.event)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("Marshal() = %s, want %s", got, tt.want)
		}
	}
}

func TestRecorder_WritesHeaderAndEvents(t *testing.T) {
	fs := fakefs.New()
	clk := fakeclock.New(epoch)

	r, err := NewRecorder("/rec", "sess_1", "router", 120, 24, fs, clk)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if r.Path() != "/rec/sess_1_20240301_120000.cast" {
		t.Errorf("Path() = %q", r.Path())
	}

	r.Inbound([]byte("router# "))
	clk.Advance(1500 * time.Millisecond)
	r.Outbound([]byte("show ip\n"))
	r.Close()
	r.Inbound([]byte("dropped"))

	lines := strings.Split(strings.TrimSpace(readFile(t, fs, r.Path())), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 events:\n%s", len(lines), strings.Join(lines, "\n"))
	}

	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != 2 || h.Width != 120 || h.Height != 24 || h.Timestamp != epoch.Unix() || h.Title != "router" {
		t.Errorf("header = %+v", h)
	}
	if lines[1] != `[0,"o","router# "]` {
		t.Errorf("event 1 = %s", lines[1])
	}
	if lines[2] != `[1.5,"i","show ip\n"]` {
		t.Errorf("event 2 = %s", lines[2])
	}
}

func TestRecorder_MasksSecrets(t *testing.T) {
	fs := fakefs.New()
	r, err := NewRecorder("/rec", "s", "", 80, 24, fs, fakeclock.New(epoch))
	if err != nil {
		t.Fatal(err)
	}
	r.Mask("hunter2", "")
	r.Outbound([]byte("hunter2\n"))

	got := readFile(t, fs, r.Path())
	if strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked into recording: %s", got)
	}
	if !strings.Contains(got, `"*******\n"`) {
		t.Errorf("masked input missing: %s", got)
	}
}

func TestRecorder_RefusesExistingFile(t *testing.T) {
	fs := fakefs.New()
	clk := fakeclock.New(epoch)
	if _, err := NewRecorder("/rec", "s", "", 80, 24, fs, clk); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRecorder("/rec", "s", "", 80, 24, fs, clk); err == nil {
		t.Error("second recorder at the same second should fail")
	}
}

func TestManager(t *testing.T) {
	fs := fakefs.New()
	clk := fakeclock.New(epoch)

	off := NewManager("/rec", false, fs, clk)
	if r, err := off.Start("s", "", 80, 24); r != nil || err != nil {
		t.Errorf("disabled Start() = %v, %v", r, err)
	}

	m := NewManager("/rec", true, fs, clk)
	if !m.Enabled() {
		t.Error("Enabled() = false")
	}
	r, err := m.Start("s1", "host", 80, 24)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Path("s1") != r.Path() {
		t.Errorf("Path() = %q, want %q", m.Path("s1"), r.Path())
	}
	if err := m.Stop("s1"); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if m.Path("s1") != "" {
		t.Error("Path() after Stop should be empty")
	}

	clk.Advance(time.Second)
	m.Start("s2", "", 80, 24)
	m.CloseAll()
	if m.Path("s2") != "" {
		t.Error("CloseAll() left a recorder")
	}
}
