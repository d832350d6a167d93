package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd, v := newRootCmd()
	if cmd == nil {
		t.Fatal("newRootCmd returned nil")
	}
	if cmd.Use != "hcloud-firewall-controller" {
		t.Errorf("Expected use 'hcloud-firewall-controller', got '%s'", cmd.Use)
	}
	if v.GetString("firewall-name") != defaultFirewallName {
		t.Errorf("expected default firewall name bound, got %q", v.GetString("firewall-name"))
	}
	if v.GetUint("reconciliation-interval") != 60 {
		t.Errorf("expected default interval 60, got %d", v.GetUint("reconciliation-interval"))
	}
}

func TestEnvBinding(t *testing.T) {
	t.Setenv("HFC_FIREWALL_NAME", "from-env")
	t.Setenv("HFC_RUN_ONCE", "true")

	_, v := newRootCmd()
	if got := v.GetString("firewall-name"); got != "from-env" {
		t.Errorf("expected HFC_FIREWALL_NAME to win, got %q", got)
	}
	if !v.GetBool("run-once") {
		t.Error("expected HFC_RUN_ONCE to enable run-once")
	}
}

func TestSetupLogger(t *testing.T) {
	levels := []string{"DEBUG", "INFO", "WARN", "ERROR", "UNKNOWN"}
	for _, lvl := range levels {
		if l := setupLogger(lvl, ""); l == nil {
			t.Errorf("setupLogger returned nil for level %s", lvl)
		}
	}

	tmpDir := t.TempDir()
	if l := setupLogger("INFO", filepath.Join(tmpDir, "test.log")); l == nil {
		t.Error("setupLogger with file returned nil")
	}
	if l := setupLogger("INFO", "/nonexistent/path/to/log.log"); l == nil {
		t.Error("setupLogger should return a logger even if file fails")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"plain entries", []string{"a", "b"}, []string{"a", "b"}},
		{"comma separated env value", []string{"a,b, c"}, []string{"a", "b", "c"}},
		{"empty items dropped", []string{"a,,b", ""}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLoadAccounts(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("tokens only", func(t *testing.T) {
		accounts, err := loadAccounts("", "fw", []string{"t1", "t2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(accounts) != 2 || accounts[0].FirewallName != "fw" {
			t.Fatalf("unexpected accounts: %+v", accounts)
		}
	})

	t.Run("file with override", func(t *testing.T) {
		path := filepath.Join(tmpDir, "accounts.yaml")
		os.WriteFile(path, []byte("accounts:\n  - token: t3\n    firewall_name: special\n  - token: t4\n"), 0600)

		accounts, err := loadAccounts(path, "fw", []string{"t1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(accounts) != 3 {
			t.Fatalf("expected 3 accounts, got %+v", accounts)
		}
		if accounts[1].FirewallName != "special" {
			t.Errorf("expected per-account override, got %q", accounts[1].FirewallName)
		}
		if accounts[2].FirewallName != "fw" {
			t.Errorf("expected default name fallback, got %q", accounts[2].FirewallName)
		}
	})

	t.Run("file entry without token", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.yaml")
		os.WriteFile(path, []byte("accounts:\n  - firewall_name: nameless\n"), 0600)
		if _, err := loadAccounts(path, "fw", nil); err == nil {
			t.Error("expected error for account without token")
		}
	})

	t.Run("no accounts at all", func(t *testing.T) {
		if _, err := loadAccounts("", "fw", nil); err == nil {
			t.Error("expected error when nothing is configured")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadAccounts(filepath.Join(tmpDir, "nope.yaml"), "fw", nil); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
