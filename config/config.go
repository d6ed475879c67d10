// Package config defines the runtime configuration for genircon and
// provides helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	rcerr "genircon/internal/errors"
)

// Config holds every tuneable for one client run.
type Config struct {
	// ── Initial session (positional arguments) ───────────────────────
	Host      string
	Port      int
	Password  string
	Timeout   time.Duration
	SessionID string

	// ── Sessions ─────────────────────────────────────────────────────
	ReadTimeout  time.Duration
	TickInterval time.Duration
	NoDNS        bool
	AcceptLegacy bool

	// ── Console ──────────────────────────────────────────────────────
	DisableReadline bool
	HistoryFile     string // readline line history
	HistoryDB       string // SQLite command history, disabled when empty
	EnableANSI      bool
	DisableANSI     bool

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw [user@]host[:port] from --tunnel
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// HasInitialSession reports whether the command line named a server to
// connect to at startup.
func (c *Config) HasInitialSession() bool { return c.Host != "" }

// ── Port helper ──────────────────────────────────────────────────────

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222". Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the tunnel fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &rcerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error(),
			Hint: "use --tunnel user@bastion.example.com:2222"}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.HasInitialSession() {
		if c.Port < 1 || c.Port > 65535 {
			return &rcerr.ConfigError{Field: "port", Value: c.Port,
				Message: "port must be 1-65535",
				Hint:    "usage: genircon <host> <port> <password> [timeout] [id]"}
		}
		if c.Timeout <= 0 {
			return &rcerr.ConfigError{Field: "timeout", Value: c.Timeout,
				Message: "connect timeout must be positive"}
		}
	}

	if c.ReadTimeout <= 0 {
		return &rcerr.ConfigError{Field: "read-timeout", Value: c.ReadTimeout,
			Message: "read timeout must be positive"}
	}
	if c.TickInterval <= 0 {
		return &rcerr.ConfigError{Field: "tick", Value: c.TickInterval,
			Message: "tick interval must be positive"}
	}

	if c.EnableANSI && c.DisableANSI {
		return &rcerr.ConfigError{Field: "enable-ansi",
			Message: "--enable-ansi and --disable-ansi are mutually exclusive"}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &rcerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec,
			Message: "tunnel host is required"}
	}
	if !c.TunnelEnabled && (c.SSHKeyPath != "" || c.SSHPassword || c.UseSSHAgent || c.StrictHostKey) {
		return &rcerr.ConfigError{Field: "tunnel",
			Message: "SSH options need a jump host",
			Hint:    "add --tunnel [user@]host[:port]"}
	}

	return nil
}
