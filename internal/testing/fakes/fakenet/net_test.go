package fakenet

import (
	"errors"
	"net"
	"testing"
)

func TestDialer_DefaultFails(t *testing.T) {
	d := NewDialer()
	if _, err := d.Dial("unix", "/tmp/agent.sock"); err == nil {
		t.Error("unconfigured Dial should fail")
	}
	calls := d.Calls()
	if len(calls) != 1 || calls[0].Network != "unix" || calls[0].Address != "/tmp/agent.sock" {
		t.Errorf("Calls() = %+v", calls)
	}
}

func TestDialer_SetErrorAndFunc(t *testing.T) {
	d := NewDialer()
	want := errors.New("refused")
	d.SetError(want)
	if _, err := d.Dial("tcp", "x:1"); !errors.Is(err, want) {
		t.Errorf("Dial() error = %v, want %v", err, want)
	}

	client, server := net.Pipe()
	defer server.Close()
	d.DialFunc = func(string, string) (net.Conn, error) { return client, nil }
	conn, err := d.Dial("tcp", "x:1")
	if err != nil || conn != client {
		t.Errorf("Dial() = %v, %v", conn, err)
	}
	conn.Close()
}
