// Package cmd wires up the CLI flags and starts the console client.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"genircon/client"
	"genircon/config"
	"genircon/internal/console"
	rcerr "genircon/internal/errors"
	"genircon/internal/metrics"
	"genircon/internal/store"
	"genircon/internal/transport"
	"genircon/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X genircon/cmd.version=v1.2.1"
var version = client.Version //nolint:gochecknoglobals

// Execute parses args and runs the console on the process's stdio.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdin, os.Stdout)
}

func execute(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("genircon", flag.ContinueOnError)

	// ── sessions ─────────────────────────────────────────────────
	timeoutSec := cfg.Timeout.Seconds()
	fs.Float64VarP(&timeoutSec, "timeout", "w", timeoutSec, "Connect timeout in seconds for the initial session")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Reply read timeout")
	fs.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Tick loop interval")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVar(&cfg.AcceptLegacy, "accept-legacy", cfg.AcceptLegacy, "Accept protocol version 2 servers")

	// ── console ──────────────────────────────────────────────────
	fs.BoolVar(&cfg.DisableReadline, "disable-readline", cfg.DisableReadline, "Read plain lines instead of using the line editor")
	fs.StringVar(&cfg.HistoryFile, "history-file", cfg.HistoryFile, "Line editor history file")
	fs.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite database recording sent commands")
	fs.BoolVar(&cfg.EnableANSI, "enable-ansi", false, "Force coloured output")
	fs.BoolVar(&cfg.DisableANSI, "disable-ansi", false, "Disable coloured output")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach servers through SSH jump host [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.SetOutput(out)
	fs.Usage = func() { printUsage(out, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(out, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(out, "genircon %s\n", version)
		return nil
	}

	switch {
	case quiet:
		cfg.Verbose = 0
	case verbose > 0:
		cfg.Verbose = 1 + verbose
	}
	cfg.Timeout = time.Duration(timeoutSec * float64(time.Second))

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(out)
	logger.SetANSI(ansiEnabled(cfg, out))

	if cfg.DryRun {
		logger.Info("Configuration OK")
		if cfg.HasInitialSession() {
			logger.Info("Initial session: %s (timeout %v)", util.FormatAddr(cfg.Host, cfg.Port), cfg.Timeout)
		}
		if cfg.TunnelEnabled {
			logger.Info("Jump host: %s@%s", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
		}
		return nil
	}

	// ── build components ─────────────────────────────────────────
	var dialer transport.Dialer = &transport.TCPDialer{}
	if cfg.TunnelEnabled {
		dialer = transport.NewSSHDialer(&transport.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultSSHConnTimeout,
		}, logger)
	}
	defer dialer.Close()

	opts := client.Options{
		Config:  cfg,
		Logger:  logger,
		Dialer:  dialer,
		Metrics: metrics.New(),
	}
	if cfg.HistoryDB != "" {
		st, err := store.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			return &rcerr.ConfigError{Field: "history-db", Value: cfg.HistoryDB, Message: err.Error()}
		}
		defer st.Close()
		opts.Store = st
	}

	src := console.OpenSource(console.SourceConfig{
		DisableReadline: cfg.DisableReadline,
		HistoryFile:     cfg.HistoryFile,
		In:              in,
	})
	if rs, ok := src.(*console.ReadlineSource); ok {
		logger.SetOutput(rs.Writer())
	}
	opts.Source = src

	if cfg.HasInitialSession() {
		opts.Initial = initialTarget(cfg)
	}
	return client.New(opts).Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "host port password [timeout] [id]". The
// password may come from GENIRCON_PASSWORD instead.
func parsePositional(cfg *config.Config, rest []string) error {
	if len(rest) == 0 {
		return nil
	}
	if len(rest) > 5 {
		return &rcerr.ConfigError{Field: "args", Value: len(rest), Message: "too many arguments",
			Hint: "usage: genircon [options] [host port password [timeout] [id]]"}
	}

	cfg.Host = rest[0]
	if len(rest) < 2 {
		return &rcerr.ConfigError{Field: "port", Message: "port required"}
	}
	port, err := config.ParsePort(rest[1])
	if err != nil {
		return &rcerr.ConfigError{Field: "port", Value: rest[1], Message: err.Error()}
	}
	cfg.Port = port

	if len(rest) > 2 {
		cfg.Password = rest[2]
	} else if cfg.Password == "" {
		return &rcerr.ConfigError{Field: "password", Message: "password required",
			Hint: "pass it as the third argument or set GENIRCON_PASSWORD"}
	}

	if len(rest) > 3 {
		secs, err := strconv.ParseFloat(rest[3], 64)
		if err != nil || secs <= 0 {
			return &rcerr.ConfigError{Field: "timeout", Value: rest[3], Message: "timeout must be a positive number of seconds"}
		}
		cfg.Timeout = time.Duration(secs * float64(time.Second))
	}
	if len(rest) > 4 {
		cfg.SessionID = rest[4]
	}
	return nil
}

// initialTarget is the session named on the command line. It bypasses
// console tokenising so the password may contain spaces.
func initialTarget(cfg *config.Config) *client.Target {
	return &client.Target{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
		ID:       cfg.SessionID,
	}
}

// ansiEnabled applies --enable-ansi/--disable-ansi, else colours a
// terminal with TERM set.
func ansiEnabled(cfg *config.Config, out io.Writer) bool {
	switch {
	case cfg.EnableANSI:
		return true
	case cfg.DisableANSI:
		return false
	}
	f, ok := out.(*os.File)
	return ok && os.Getenv("TERM") != "" && term.IsTerminal(int(f.Fd()))
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `GeniRCON Client %s

An interactive console for GeniRCON servers.

Usage:
  genircon [options]                                  Start the console
  genircon [options] <host> <port> <password> [timeout] [id]
                                                      Start and connect

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Console commands:
  /connect <host> <port> <password> <timeout> [id]    Open a session
  /session <id>, /list, /disconnect [id]              Manage sessions
  /history [n], /stats, /help [cmd], /version, /exit

Examples:
  genircon mc.example.com 19132 secret                Connect at startup
  genircon -T admin@bastion 10.0.0.5 19132 secret     Through an SSH jump host
  genircon --history-db ~/.genircon.db                Record sent commands
`)
}
