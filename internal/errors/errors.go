// Package errors provides domain-specific error types for genircon.
//
// These types carry structured context (operation, address, handshake
// stage) so the console can report a failure against the session that
// caused it instead of giving up on the whole process.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrTunnelClosed    = errors.New("tunnel is closed")
	ErrNotConnected    = errors.New("session is not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrVersionMismatch = errors.New("protocol version mismatch")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// TransportError represents a failure opening, reading or writing a
// session socket.
type TransportError struct {
	Op   string // "dial", "read", "write", "decode"
	Addr string // remote address
	Err  error  // underlying error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandshakeError reports a rejected login or an incompatible protocol
// version. Local and Remote are only set for stage "protocol".
type HandshakeError struct {
	Stage  string // "auth" or "protocol"
	Addr   string
	Local  int
	Remote int
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Stage == "protocol" && e.Remote != 0 {
		return fmt.Sprintf("handshake %s %s: %v (client %d, server %d)", e.Stage, e.Addr, e.Err, e.Local, e.Remote)
	}
	return fmt.Sprintf("handshake %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// UnknownSessionError is returned when a session id is not registered.
type UnknownSessionError struct {
	ID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown session %q", e.ID)
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a TransportError. Deadline expiries are additionally
// marked with ErrTimeout.
func Wrap(op, addr string, err error) *TransportError {
	if IsTimeout(err) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsHandshake reports whether err is a HandshakeError.
func IsHandshake(err error) bool {
	var he *HandshakeError
	return errors.As(err, &he)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use genircon/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
