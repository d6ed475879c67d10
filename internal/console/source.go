package console

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// Prompt is shown by the interactive line editor.
const Prompt = "> "

// historyLimit caps the persisted readline history.
const historyLimit = 500

// LineSource yields one line of operator input per call. ReadLine
// returns io.EOF once input is exhausted.
type LineSource interface {
	ReadLine() (string, error)
	Close() error
}

// SourceConfig selects and configures the input source.
type SourceConfig struct {
	DisableReadline bool
	HistoryFile     string    // empty keeps history in memory only
	In              io.Reader // non-interactive input, default os.Stdin
}

// OpenSource returns a readline editor when stdin is a terminal and
// readline is not disabled, otherwise a plain line scanner.
func OpenSource(cfg SourceConfig) LineSource {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	if cfg.DisableReadline || in != os.Stdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		return NewScannerSource(in)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:                 Prompt,
		HistoryFile:            cfg.HistoryFile,
		HistoryLimit:           historyLimit,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return NewScannerSource(in)
	}
	return &ReadlineSource{rl: rl}
}

// ReadlineSource reads from an interactive terminal with line editing
// and history.
type ReadlineSource struct {
	rl *readline.Instance
}

func (s *ReadlineSource) ReadLine() (string, error) {
	line, err := s.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		s.rl.SaveToHistory(trimmed) //nolint:errcheck
	}
	return line, nil
}

// Writer returns a writer that prints above the prompt and redraws it.
func (s *ReadlineSource) Writer() io.Writer { return s.rl }

func (s *ReadlineSource) Close() error { return s.rl.Close() }

// ScannerSource reads newline-terminated lines from a plain reader.
type ScannerSource struct {
	sc     *bufio.Scanner
	closer io.Closer
}

// NewScannerSource wraps r. If r is an io.Closer other than os.Stdin,
// Close closes it.
func NewScannerSource(r io.Reader) *ScannerSource {
	s := &ScannerSource{sc: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok && r != io.Reader(os.Stdin) {
		s.closer = c
	}
	return s
}

func (s *ScannerSource) ReadLine() (string, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *ScannerSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
