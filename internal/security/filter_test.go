package security

import (
	"errors"
	"strings"
	"testing"
)

func TestCommandFilter_Blocklist(t *testing.T) {
	tests := []struct {
		name        string
		blocklist   []string
		command     string
		wantAllowed bool
	}{
		{
			name:        "allow normal command",
			blocklist:   []string{`rm\s+-rf\s+/\s*$`},
			command:     "ls -la",
			wantAllowed: true,
		},
		{
			name:        "block rm -rf /",
			blocklist:   []string{`rm\s+-rf\s+/\s*$`},
			command:     "rm -rf /",
			wantAllowed: false,
		},
		{
			name:        "allow rm with safe path",
			blocklist:   []string{`rm\s+-rf\s+/\s*$`},
			command:     "rm -rf /tmp/test",
			wantAllowed: true,
		},
		{
			name:        "block fork bomb",
			blocklist:   []string{`:\s*\(\s*\)\s*\{\s*:\s*\|`},
			command:     ":(){ :|:& };:",
			wantAllowed: false,
		},
		{
			name:        "empty blocklist allows all",
			blocklist:   []string{},
			command:     "rm -rf /",
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := NewCommandFilter(tt.blocklist, nil)
			if err != nil {
				t.Fatalf("NewCommandFilter() error = %v", err)
			}

			allowed, _ := cf.IsAllowed(tt.command)
			if allowed != tt.wantAllowed {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.command, allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCommandFilter_Allowlist(t *testing.T) {
	tests := []struct {
		name        string
		allowlist   []string
		command     string
		wantAllowed bool
	}{
		{
			name:        "allow matching command",
			allowlist:   []string{`^ls`, `^cat`, `^pwd`},
			command:     "ls -la",
			wantAllowed: true,
		},
		{
			name:        "block non-matching command",
			allowlist:   []string{`^ls`, `^cat`, `^pwd`},
			command:     "rm -rf /tmp/test",
			wantAllowed: false,
		},
		{
			name:        "allow git commands",
			allowlist:   []string{`^git\s`},
			command:     "git status",
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf, err := NewCommandFilter(nil, tt.allowlist)
			if err != nil {
				t.Fatalf("NewCommandFilter() error = %v", err)
			}

			allowed, _ := cf.IsAllowed(tt.command)
			if allowed != tt.wantAllowed {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.command, allowed, tt.wantAllowed)
			}
		})
	}
}

func TestCommandFilter_InvalidRegex(t *testing.T) {
	_, err := NewCommandFilter([]string{`[invalid`}, nil)
	if err == nil {
		t.Error("expected error for invalid regex, got nil")
	}
}

func TestDefaultBlocklist(t *testing.T) {
	blocklist := DefaultBlocklist()
	if len(blocklist) == 0 {
		t.Error("DefaultBlocklist() returned empty list")
	}

	// Verify patterns are valid regex
	_, err := NewCommandFilter(blocklist, nil)
	if err != nil {
		t.Errorf("DefaultBlocklist() contains invalid regex: %v", err)
	}
}

func TestDefaultBlocklist_NetworkDevices(t *testing.T) {
	cf, err := NewCommandFilter(DefaultBlocklist(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, cmd := range []string{"write erase startup-config", "erase nvram:", "format flash:"} {
		if ok, _ := cf.IsAllowed(cmd); ok {
			t.Errorf("IsAllowed(%q) = true, want blocked", cmd)
		}
	}
	for _, cmd := range []string{"show running-config", "copy running-config startup-config"} {
		if ok, reason := cf.IsAllowed(cmd); !ok {
			t.Errorf("IsAllowed(%q) = false (%s), want allowed", cmd, reason)
		}
	}
}

func TestCommandFilter_Check(t *testing.T) {
	cf, err := NewCommandFilter([]string{`^reload`}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := cf.Check("show clock"); err != nil {
		t.Errorf("Check(show clock) = %v", err)
	}

	err = cf.Check("reload in 5")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("Check(reload) = %v, want *BlockedError", err)
	}
	if blocked.Command != "reload in 5" || !strings.Contains(blocked.Reason, "^reload") {
		t.Errorf("BlockedError = %+v", blocked)
	}
}

func TestCommandFilter_Update(t *testing.T) {
	cf, err := NewCommandFilter([]string{`^reload`}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := cf.Update(nil, []string{`^show\s`}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ok, _ := cf.IsAllowed("reload"); ok {
		t.Error("allowlist should reject reload")
	}
	if ok, _ := cf.IsAllowed("show version"); !ok {
		t.Error("allowlist should accept show version")
	}

	if err := cf.Update([]string{`(`}, nil); err == nil {
		t.Error("Update() with invalid pattern should fail")
	}
	if ok, _ := cf.IsAllowed("show version"); !ok {
		t.Error("failed Update() changed the filter")
	}
}
