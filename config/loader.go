package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GENIRCON_ prefix. Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg. Only non-empty
// env vars override the existing value. Call it before flag parsing so
// that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GENIRCON_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := envInt("GENIRCON_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("GENIRCON_READ_TIMEOUT"); v > 0 {
		cfg.ReadTimeout = secondsDuration(v)
	}
	if v := envInt("GENIRCON_TICK_MS"); v > 0 {
		cfg.TickInterval = time.Duration(v) * time.Millisecond
	}
	if envBool("GENIRCON_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("GENIRCON_ACCEPT_LEGACY") {
		cfg.AcceptLegacy = true
	}

	// Console
	if envBool("GENIRCON_DISABLE_READLINE") {
		cfg.DisableReadline = true
	}
	if v := os.Getenv("GENIRCON_HISTORY_FILE"); v != "" {
		cfg.HistoryFile = v
	}
	if v := os.Getenv("GENIRCON_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}

	// SSH tunnel
	if v := os.Getenv("GENIRCON_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("GENIRCON_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("GENIRCON_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("GENIRCON_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("GENIRCON_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("GENIRCON_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("GENIRCON_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
