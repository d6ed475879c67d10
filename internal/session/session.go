// Package session implements one RCON connection and the registry of
// live connections the console switches between.
//
// A Session walks Disconnected → Connecting → Authenticating →
// CheckingProtocol → Ready and only accepts commands and logger polls in
// Ready. Sessions are not safe for concurrent use; the tick loop owns
// every Session and performs all of their I/O.
package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	rcerr "genircon/internal/errors"
	"genircon/internal/metrics"
	"genircon/internal/protocol"
	"genircon/internal/transport"
	"genircon/util"
)

// DefaultReadTimeout bounds every read after the socket is open.
const DefaultReadTimeout = 3 * time.Second

// State is a step of the connection handshake.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	CheckingProtocol
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case CheckingProtocol:
		return "checking-protocol"
	case Ready:
		return "ready"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Config describes one session.
type Config struct {
	ID       string
	Host     string // address actually dialled
	Port     int
	Password string

	// Timeout bounds the TCP connect.
	Timeout time.Duration
	// ReadTimeout bounds each reply read. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
	// AcceptLegacy lets a version 2 server reach Ready.
	AcceptLegacy bool
}

// Session is one authenticated RCON connection.
type Session struct {
	cfg     Config
	dialer  transport.Dialer
	logger  *util.Logger
	metrics *metrics.Collector

	conn       net.Conn
	state      State
	authorized bool
	version    int

	lastResponse string
	hasResponse  bool
	lastStatus   *protocol.Status

	// replies owed by the server that nobody is waiting for
	lateLogs       int
	unreadCommands int
}

// New returns a Disconnected session. A nil logger discards output.
func New(cfg Config, dialer transport.Dialer, logger *util.Logger, m *metrics.Collector) *Session {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Session{cfg: cfg, dialer: dialer, logger: logger, metrics: m}
}

// ── Accessors ────────────────────────────────────────────────────────

func (s *Session) ID() string               { return s.cfg.ID }
func (s *Session) Host() string             { return s.cfg.Host }
func (s *Session) Port() int                { return s.cfg.Port }
func (s *Session) Password() string         { return s.cfg.Password }
func (s *Session) Timeout() time.Duration   { return s.cfg.Timeout }
func (s *Session) State() State             { return s.state }
func (s *Session) Authorized() bool         { return s.authorized }
func (s *Session) Version() int             { return s.version }
func (s *Session) Status() *protocol.Status { return s.lastStatus }

// Addr returns host:port.
func (s *Session) Addr() string { return util.FormatAddr(s.cfg.Host, s.cfg.Port) }

// Ready reports whether the handshake completed.
func (s *Session) Ready() bool { return s.state == Ready }

// TakeResponse returns the accumulated response text and clears it.
func (s *Session) TakeResponse() (string, bool) {
	res, ok := s.lastResponse, s.hasResponse
	s.lastResponse, s.hasResponse = "", false
	return res, ok
}

// ── Handshake ────────────────────────────────────────────────────────

// Connect opens the socket and runs the handshake. On a dial failure
// the error text is kept as the last response. A rejected login or a
// malformed protocol reply closes the socket. A version mismatch leaves
// the socket open but the session short of Ready; call Disconnect.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != Disconnected {
		return fmt.Errorf("session %s is %s", s.cfg.ID, s.state)
	}
	s.state = Connecting
	addr := s.Addr()

	dctx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	conn, err := s.dialer.Dial(dctx, "tcp", addr)
	if err != nil {
		s.state = Disconnected
		s.setResponse(err.Error())
		s.metrics.RecordError(err.Error())
		return rcerr.Wrap("dial", addr, err)
	}
	s.conn = &meteredConn{Conn: conn, metrics: s.metrics}
	s.metrics.SessionOpened()
	s.logger.Debug("session %s: connected to %s", s.cfg.ID, addr)

	s.state = Authenticating
	if err := s.authorize(); err != nil {
		s.metrics.HandshakeFailed()
		s.Disconnect()
		return err
	}

	s.state = CheckingProtocol
	remote, err := s.remoteProtocol()
	if err != nil {
		s.metrics.HandshakeFailed()
		return err
	}
	return s.negotiate(remote)
}

// CheckProtocol repeats the protocol check on a Ready session. The
// server treats it as a request to resume pushing logger data.
func (s *Session) CheckProtocol() error {
	if s.state != Ready {
		return rcerr.ErrNotConnected
	}
	s.state = CheckingProtocol
	remote, err := s.remoteProtocol()
	if err != nil {
		return err
	}
	return s.negotiate(remote)
}

func (s *Session) authorize() error {
	p, err := s.exchange(protocol.IDAuthorize, protocol.TypeAuth, s.cfg.Password)
	if err != nil {
		return err
	}
	if p.Type != protocol.TypeAuthResponse || p.ID != protocol.IDAuthorize {
		return &rcerr.HandshakeError{Stage: "auth", Addr: s.Addr(), Err: rcerr.ErrAuthFailed}
	}
	s.authorized = true
	s.logger.Notice("Login success!")
	return nil
}

// remoteProtocol asks the server for its version. Any reply that is not
// a version number closes the session.
func (s *Session) remoteProtocol() (int, error) {
	p, err := s.exchange(protocol.IDProtocolCheck, protocol.TypeProtocol, strconv.Itoa(protocol.ProtocolVersion))
	if err != nil {
		s.Disconnect()
		return 0, err
	}
	if p.Type != protocol.TypeResponseValue || p.ID != protocol.IDProtocolCheck {
		s.Disconnect()
		return 0, &rcerr.HandshakeError{Stage: "protocol", Addr: s.Addr(),
			Err: fmt.Errorf("unexpected reply %s", p)}
	}
	v, err := strconv.Atoi(strings.TrimSpace(p.Body))
	if err != nil {
		s.Disconnect()
		return 0, &rcerr.HandshakeError{Stage: "protocol", Addr: s.Addr(),
			Err: fmt.Errorf("%w: version %q", rcerr.ErrVersionMismatch, p.Body)}
	}
	return v, nil
}

func (s *Session) negotiate(remote int) error {
	switch {
	case remote == protocol.ProtocolVersion:
	case remote == protocol.LegacyProtocolVersion && s.cfg.AcceptLegacy:
		s.logger.Warn("Session %s speaks legacy protocol %d, server status is unavailable", s.cfg.ID, remote)
	default:
		if remote < protocol.ProtocolVersion {
			s.logger.Warn("Outdated server!")
		} else {
			s.logger.Warn("Outdated client!")
		}
		s.metrics.HandshakeFailed()
		return &rcerr.HandshakeError{Stage: "protocol", Addr: s.Addr(),
			Local: protocol.ProtocolVersion, Remote: remote, Err: rcerr.ErrVersionMismatch}
	}
	s.version = remote
	s.state = Ready
	return nil
}

// ── Exchanges ────────────────────────────────────────────────────────

// SendCommand forwards text to the server. With expectResponse it reads
// one reply; a command reply replaces the last response and is returned
// with ok set. Any other reply is ignored.
//
// A reply that does not arrive within the read timeout closes the
// session, since a late reply would be taken as the answer to the next
// command. Without expectResponse the reply is skipped when it arrives.
func (s *Session) SendCommand(text string, expectResponse bool) (resp string, ok bool, err error) {
	if s.state != Ready {
		return "", false, rcerr.ErrNotConnected
	}
	s.metrics.CommandSent()

	if !expectResponse {
		if err := s.send(protocol.IDCommand, protocol.TypeExecCommand, text); err != nil {
			return "", false, s.fault(err)
		}
		s.unreadCommands++
		return "", false, nil
	}
	p, err := s.exchange(protocol.IDCommand, protocol.TypeExecCommand, text)
	if err != nil {
		err = s.fault(err)
		if rcerr.IsTimeout(err) {
			s.Disconnect()
		}
		return "", false, err
	}
	if p.ID != protocol.IDCommand || p.Type != protocol.TypeResponseValue {
		s.logger.Debug("session %s: ignoring %s", s.cfg.ID, p)
		return "", false, nil
	}
	s.setResponse(p.Body)
	return p.Body, true, nil
}

// PollLogger pulls buffered log text and status from the server. It
// reports whether new data arrived. A read timeout means no data, not an
// error; the late reply is applied whenever it shows up.
func (s *Session) PollLogger() (bool, error) {
	if s.state != Ready {
		return false, rcerr.ErrNotConnected
	}
	s.metrics.LoggerPolled()

	p, err := s.exchange(protocol.IDLogger, protocol.TypeLogger, "")
	if err != nil {
		if rcerr.IsTimeout(err) {
			s.lateLogs++
			return false, nil
		}
		return false, s.fault(err)
	}
	if p.ID != protocol.IDLogger {
		return false, nil
	}
	return s.applyLogger(p), nil
}

// applyLogger appends the log text of a logger reply and keeps its
// status. It reports whether the reply carried data.
func (s *Session) applyLogger(p *protocol.Packet) bool {
	if p.Type != protocol.TypeResponseValue || p.Body == "" {
		return false
	}
	payload, err := protocol.DecodeLoggerPayload(s.version, p.Body)
	if err != nil {
		s.logger.Warn("Session %s sent an unreadable logger payload: %v", s.cfg.ID, err)
		s.metrics.RecordError(err.Error())
		return false
	}
	s.appendResponse(payload.Logger)
	if payload.Status != nil {
		s.lastStatus = payload.Status
	}
	return true
}

// Disconnect closes the socket. Safe to call in any state.
func (s *Session) Disconnect() {
	if s.conn == nil {
		s.state = Disconnected
		return
	}
	s.logger.Notice("Disconnecting from session %s (%s)", s.cfg.ID, s.Addr())
	s.conn.Close()
	s.conn = nil
	s.state = Disconnected
	s.authorized = false
	s.lateLogs, s.unreadCommands = 0, 0
	s.metrics.SessionClosed()
	s.logger.Notice("Disconnected from session %s (%s)", s.cfg.ID, s.Addr())
}

// ── Frame I/O ────────────────────────────────────────────────────────

func (s *Session) send(id, typ int32, body string) error {
	if s.conn == nil {
		return rcerr.ErrNotConnected
	}
	p := &protocol.Packet{ID: id, Type: typ, Body: body}
	s.logger.Debug("session %s → %s", s.cfg.ID, p)

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout)) //nolint:errcheck
	if err := protocol.WritePacket(s.conn, p); err != nil {
		if rcerr.Is(err, protocol.ErrBodyTooLarge) {
			return err
		}
		return rcerr.Wrap("write", s.Addr(), err)
	}
	return nil
}

// exchange writes one request and reads its reply within one read
// timeout. Late logger replies met on the way are applied and replies to
// unread commands are dropped. Any other frame is returned to the caller.
//
// A deadline that expires after part of a frame was read leaves the
// stream misaligned and is reported as ErrTruncatedFrame, never as a
// timeout.
func (s *Session) exchange(id, typ int32, body string) (*protocol.Packet, error) {
	if err := s.send(id, typ, body); err != nil {
		return nil, err
	}

	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)) //nolint:errcheck
	for {
		r := &countingReader{r: s.conn}
		p, err := protocol.ReadPacket(r)
		if err != nil {
			return nil, s.readFailed(r.n, err)
		}
		s.logger.Debug("session %s ← %s", s.cfg.ID, p)

		switch {
		case p.ID == id:
			if id == protocol.IDCommand && s.unreadCommands > 0 {
				s.unreadCommands--
				continue
			}
			return p, nil
		case p.ID == protocol.IDLogger && s.lateLogs > 0:
			s.lateLogs--
			s.applyLogger(p)
			continue
		case p.ID == protocol.IDCommand && s.unreadCommands > 0:
			s.unreadCommands--
			continue
		}
		return p, nil
	}
}

func (s *Session) readFailed(consumed int, err error) error {
	op := "read"
	switch {
	case rcerr.Is(err, protocol.ErrMalformedFrame):
		op = "decode"
	case consumed > 0 && rcerr.IsTimeout(err):
		err = fmt.Errorf("%w: deadline expired after %d bytes", protocol.ErrTruncatedFrame, consumed)
	}
	return rcerr.Wrap(op, s.Addr(), err)
}

// fault closes the session unless err leaves the stream usable.
func (s *Session) fault(err error) error {
	s.metrics.RecordError(err.Error())
	if rcerr.IsTimeout(err) || rcerr.Is(err, protocol.ErrBodyTooLarge) {
		return err
	}
	s.Disconnect()
	return err
}

func (s *Session) setResponse(text string) {
	s.lastResponse, s.hasResponse = text, true
}

func (s *Session) appendResponse(text string) {
	if s.hasResponse {
		s.lastResponse += "\n" + text
		return
	}
	s.setResponse(text)
}
