package util

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Alert("a")
	l.Warn("w")
	l.Notice("n")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERROR]", "[ALERT]", "[WARNING]", "[NOTICE]", "[INFO]", "[VERBOSE]", "[DEBUG]"}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Warn("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)

	l.Info("test")

	re := regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[INFO\] test\n$`)
	if !re.MatchString(buf.String()) {
		t.Errorf("unexpected line %q", buf.String())
	}
}

func TestLogger_LogLabelAndColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Log("Hello §a100%", LogNormal, "12345 / INFO", "§e")

	if got, want := buf.String(), "[12345 / INFO] Hello 100%\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLogger_ANSI(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)
	l.SetANSI(true)

	l.Warn("careful")

	out := buf.String()
	if !strings.HasPrefix(out, "\x1b[38;5;227m[WARNING] careful") {
		t.Errorf("expected yellow ANSI prefix, got %q", out)
	}
	if !strings.HasSuffix(out, "\x1b[m\n") {
		t.Errorf("expected reset suffix, got %q", out)
	}
	if !l.ANSI() {
		t.Error("ANSI() should report true")
	}
}

func TestLogger_WriteRaw(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0)
	l.SetOutput(&buf)

	l.WriteRaw("\x1b]0;title\x07")
	if buf.String() != "\x1b]0;title\x07" {
		t.Errorf("got %q", buf.String())
	}
}

func TestLogger_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Info("line")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 200 {
		t.Fatalf("expected 200 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line != "[INFO] line" {
			t.Fatalf("interleaved output: %q", line)
		}
	}
}
