package cmd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genircon/config"
	rcerr "genircon/internal/errors"
	"genircon/internal/protocol/protocoltest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), args, strings.NewReader(stdin), &out)
	return out.String(), err
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out, err := run(t, "", "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "genircon v1.2.0 alpha") {
		t.Errorf("output = %q", out)
	}
}

// TestExecute_Help verifies --help prints usage without starting.
func TestExecute_Help(t *testing.T) {
	out, err := run(t, "", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Usage:", "--history-db", "--tunnel", "/connect"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	out, err := run(t, "", "--dry-run", "--disable-ansi", "mc.example.com", "19132", "secret", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Initial session: mc.example.com:19132 (timeout 7s)") {
		t.Errorf("output = %q", out)
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"port missing", []string{"--dry-run", "host"}, "port"},
		{"bad port", []string{"--dry-run", "host", "99999", "pw"}, "port"},
		{"no password", []string{"--dry-run", "host", "19132"}, "password"},
		{"bad timeout", []string{"--dry-run", "host", "19132", "pw", "soon"}, "timeout"},
		{"too many", []string{"--dry-run", "h", "1", "pw", "2", "id", "extra"}, "args"},
		{"ansi conflict", []string{"--dry-run", "--enable-ansi", "--disable-ansi"}, "enable-ansi"},
		{"bad tunnel", []string{"--dry-run", "-T", "a@b:x"}, "tunnel"},
		{"ssh key without tunnel", []string{"--dry-run", "--ssh-key", "/k"}, "tunnel"},
		{"zero tick", []string{"--dry-run", "--tick", "0s"}, "tick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GENIRCON_PASSWORD", "")
			_, err := run(t, "", tt.args...)
			var ce *rcerr.ConfigError
			if !rcerr.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// TestExecute_PasswordFromEnv verifies GENIRCON_PASSWORD fills a
// missing password argument.
func TestExecute_PasswordFromEnv(t *testing.T) {
	t.Setenv("GENIRCON_PASSWORD", "fromenv")
	if _, err := run(t, "", "--dry-run", "host", "19132"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if _, err := run(t, "", "--nonexistent-flag"); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_Session runs the console against a fake server with
// scripted input.
func TestExecute_Session(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := run(t, "say hello\n/history\n/exit\n",
		"--disable-ansi", "--tick", "1ms", "--read-timeout", "500ms", "--history-db", db,
		srv.Host(), fmt.Sprint(srv.Port()), "pw", "2", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"GeniRCON session has been created! ID: A",
		"Connected!",
		"[A / INFO] say hello",
		"Stopping GeniRCON Client ...",
		"GeniRCON Client has stopped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestExecute_PasswordWithSpaces connects with a password containing a
// space given as one positional argument.
func TestExecute_PasswordWithSpaces(t *testing.T) {
	srv := protocoltest.Start(t, "my secret")

	out, err := run(t, "/exit\n",
		"--disable-ansi", "--tick", "1ms", "--read-timeout", "500ms",
		srv.Host(), fmt.Sprint(srv.Port()), "my secret", "2", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Connected!") || strings.Contains(out, "Wrong format") {
		t.Errorf("output:\n%s", out)
	}
	if srv.Accepted() != 1 {
		t.Errorf("connections = %d, want 1", srv.Accepted())
	}
}

// TestExecute_BadHistoryDB verifies an unusable database path is a
// configuration error.
func TestExecute_BadHistoryDB(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing", "history.db")
	_, err := run(t, "/exit\n", "--disable-ansi", "--history-db", db)
	var ce *rcerr.ConfigError
	if !rcerr.As(err, &ce) || ce.Field != "history-db" {
		t.Fatalf("err = %v", err)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func TestParsePositional(t *testing.T) {
	cfg := config.Default()
	if err := parsePositional(cfg, []string{"mc.local", "19132", "pw", "2.5", "srv1"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "mc.local" || cfg.Port != 19132 || cfg.Password != "pw" ||
		cfg.Timeout != 2500*time.Millisecond || cfg.SessionID != "srv1" {
		t.Errorf("cfg = %+v", cfg)
	}

	empty := config.Default()
	if err := parsePositional(empty, nil); err != nil || empty.HasInitialSession() {
		t.Errorf("no args: err = %v host = %q", err, empty.Host)
	}
}

func TestInitialTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port, cfg.Password, cfg.Timeout = "10.0.0.5", 19132, "two words", 5*time.Second
	cfg.SessionID = "main"
	got := initialTarget(cfg)
	if got.Host != "10.0.0.5" || got.Port != 19132 || got.Password != "two words" ||
		got.Timeout != 5*time.Second || got.ID != "main" {
		t.Errorf("target = %+v", got)
	}
}

func TestAnsiEnabled(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	if ansiEnabled(cfg, &buf) {
		t.Error("a buffer is not a terminal")
	}
	cfg.EnableANSI = true
	if !ansiEnabled(cfg, &buf) {
		t.Error("--enable-ansi forces colour")
	}
}
