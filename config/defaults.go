package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so CLI flags and environment loading
// agree on them.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds the TCP connect of the initial session
	// when the command line omits a timeout.
	DefaultConnTimeout = 5 * time.Second

	// DefaultReadTimeout bounds every reply read on a session.
	DefaultReadTimeout = 3 * time.Second

	// DefaultTickInterval is the pause between tick loop iterations.
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultTitleEvery is how many ticks pass between terminal title
	// refreshes.
	DefaultTitleEvery = 40

	// DefaultSSHConnTimeout is the jump host connection timeout.
	DefaultSSHConnTimeout = 30 * time.Second

	// DefaultHistoryLimit is how many records /history prints without
	// an argument.
	DefaultHistoryLimit = 10
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Timeout:      DefaultConnTimeout,
		ReadTimeout:  DefaultReadTimeout,
		TickInterval: DefaultTickInterval,
		Verbose:      1,
	}
}
