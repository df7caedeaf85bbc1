package mockssh

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func dial(t *testing.T, s *Server, user, pass string) (*ssh.Client, error) {
	t.Helper()
	return ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestServer_StartStop(t *testing.T) {
	server, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer server.Close()

	if server.Host() != "127.0.0.1" {
		t.Errorf("Host() = %v, want 127.0.0.1", server.Host())
	}
	if server.Port() == "" {
		t.Error("Port() should not be empty")
	}
}

func TestServer_Authentication(t *testing.T) {
	server, err := New(WithUser("testuser", "testpass"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer server.Close()

	client, err := dial(t, server, "testuser", "testpass")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	client.Close()

	if _, err := dial(t, server, "testuser", "wrongpass"); err == nil {
		t.Error("Dial() with wrong password should fail")
	}
}

func TestServer_EchoShell(t *testing.T) {
	server, err := New(WithHandler(EchoShell("Hello", "dev> ", map[string]string{"show ver": "v1.2\r\n"})))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer server.Close()

	client, err := dial(t, server, "test", "test")
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer sess.Close()

	stdin, _ := sess.StdinPipe()
	stdout, _ := sess.StdoutPipe()
	if err := sess.RequestPty("dumb", 24, 80, ssh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty() error = %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error = %v", err)
	}

	io.WriteString(stdin, "show ver\nexit\n")
	out, _ := io.ReadAll(bufio.NewReader(stdout))

	want := "Hello\r\ndev> show ver\r\nv1.2\r\ndev> exit\r\n"
	if string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if !strings.HasSuffix(string(out), "exit\r\n") {
		t.Error("session did not end on exit")
	}
}
