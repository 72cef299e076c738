package guard

import (
	"strings"
	"testing"
)

var allPolicies = []SudoPolicy{SudoAllow, SudoDeny, SudoAsk}

// ===== HARD DENYLIST =====

func TestCheck_DenylistAbsolute(t *testing.T) {
	// Destructive signatures must be blocked under every sudo policy.
	corpus := []string{
		"rm -rf /",
		"rm -rf /tmp/scratch",
		"sudo rm -rf /var/log",
		"mkfs.ext4 /dev/sda1",
		"sudo mkfs -t xfs /dev/sdb",
		"dd if=/dev/zero of=/dev/sda bs=1M",
		":(){ :|:& };:",
		":(){:|:&};:",
		"shutdown -h now",
		"sudo shutdown -r +5",
		"reboot",
		"poweroff",
		"init 0",
		"chown -r / nobody",
		"kill -9 1",
		"sudo kill -9 1",
		"fdisk /dev/sda",
		"halt",
	}

	for _, cmd := range corpus {
		for _, policy := range allPolicies {
			v := Check(cmd, policy)
			if !v.Blocked {
				t.Errorf("Check(%q, %s): expected blocked, got %+v", cmd, policy, v)
			}
			if v.Reason == "" {
				t.Errorf("Check(%q, %s): blocked without reason", cmd, policy)
			}
		}
	}
}

func TestCheck_DenylistCaseInsensitive(t *testing.T) {
	for _, cmd := range []string{"RM -RF /", "Shutdown now", "SUDO RM -RF /home"} {
		if v := Check(cmd, SudoAllow); !v.Blocked {
			t.Errorf("Check(%q): expected blocked regardless of case", cmd)
		}
	}
}

func TestCheck_WordBoundaryPatterns(t *testing.T) {
	// Near misses of the regex-based signatures must pass the denylist.
	tests := []struct {
		cmd     string
		blocked bool
	}{
		{"kill -9 1", true},
		{"kill  -9  1", true},
		{"kill -9 1234", false},
		{"killall -9 stale-worker", false},
		{"fdisk -l", true},
		{"echo halting", false},
	}

	for _, tt := range tests {
		v := Check(tt.cmd, SudoAllow)
		if v.Blocked != tt.blocked {
			t.Errorf("Check(%q): blocked=%v, want %v (reason=%q)", tt.cmd, v.Blocked, tt.blocked, v.Reason)
		}
	}
}

// ===== NON-DESTRUCTIVE-ONLY POLICY =====

func TestCheck_DestructivePolicy(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{"redirect", "echo hi > /tmp/out"},
		{"append", "echo hi >> /tmp/out"},
		{"tee", "echo hi | tee /tmp/out"},
		{"truncate", "echo | truncate -s 0 file"},
		{"chmod", "chmod 777 script.sh"},
		{"chown", "chown user file"},
		{"chgrp", "chgrp staff file"},
		{"plain rm", "rm notes.txt"},
		{"plain dd", "dd bs=1M count=1"},
		{"colon redirect", "echo | :> file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.cmd, SudoAllow)
			if !v.Blocked {
				t.Errorf("Check(%q): expected blocked", tt.cmd)
			}
		})
	}
}

func TestCheck_MultiLine(t *testing.T) {
	v := Check("echo one\necho two", SudoAllow)
	if !v.Blocked {
		t.Fatalf("multi-line command must be blocked, got %+v", v)
	}
	if !strings.Contains(v.Reason, "multi-line") {
		t.Errorf("unexpected reason: %q", v.Reason)
	}
}

func TestCheck_EmptyCommand(t *testing.T) {
	for _, cmd := range []string{"", "   ", "\t"} {
		if v := Check(cmd, SudoAllow); !v.Blocked {
			t.Errorf("Check(%q): expected blocked", cmd)
		}
	}
}

// ===== SUDO POLICY =====

func TestCheck_SudoPolicy(t *testing.T) {
	cmd := "sudo apt update"

	if v := Check(cmd, SudoAllow); v.Blocked || v.NeedConfirm {
		t.Errorf("allow: expected pass, got %+v", v)
	}
	if v := Check(cmd, SudoDeny); !v.Blocked {
		t.Errorf("deny: expected blocked, got %+v", v)
	}
	v := Check(cmd, SudoAsk)
	if v.Blocked {
		t.Errorf("ask: expected not blocked, got %+v", v)
	}
	if !v.NeedConfirm {
		t.Errorf("ask: expected NeedConfirm, got %+v", v)
	}
}

func TestCheck_CleanCommands(t *testing.T) {
	clean := []string{
		"echo HELLO",
		"ls -la",
		"curl -fsS https://ifconfig.me",
		"dig +short myip.opendns.com @resolver1.opendns.com",
		"(command -v curl >/dev/null 2>&1 && curl -fsS https://ifconfig.me) || (printf 'no external IP source found\\n' >&2; exit 1)",
		"df -h",
		"uptime",
	}

	for _, cmd := range clean {
		for _, policy := range allPolicies {
			v := Check(cmd, policy)
			if v.Blocked || v.NeedConfirm {
				t.Errorf("Check(%q, %s): expected pass, got %+v", cmd, policy, v)
			}
		}
	}
}

// ===== HELPERS =====

func TestHasSudo(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{"sudo apt update", true},
		{"time sudo systemctl status ssh", true},
		{"echo sudoku", false},
		{"visudo", false},
		{"echo hello", false},
	}

	for _, tt := range tests {
		if got := HasSudo(tt.cmd); got != tt.want {
			t.Errorf("HasSudo(%q) = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}

func TestParseSudoPolicy(t *testing.T) {
	for _, s := range []string{"allow", "deny", "ask"} {
		p, err := ParseSudoPolicy(s)
		if err != nil {
			t.Fatalf("ParseSudoPolicy(%q): %v", s, err)
		}
		if string(p) != s {
			t.Errorf("ParseSudoPolicy(%q) = %q", s, p)
		}
	}

	if _, err := ParseSudoPolicy("maybe"); err == nil {
		t.Error("expected error for invalid policy")
	}
}
