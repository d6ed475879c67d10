// Package protocoltest provides an in-process GeniRCON server for tests.
package protocoltest

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"genircon/internal/protocol"
)

// Reply describes how the server answers one command. Raw, when set, is
// written instead of an encoded frame. Silent sends nothing. Close drops
// the connection after writing. Delay holds the reply back; frames sent
// meanwhile are answered after it, in order.
type Reply struct {
	ID     int32
	Type   int32
	Body   string
	Raw    []byte
	Silent bool
	Close  bool
	Delay  time.Duration
}

type pendingLog struct {
	payload protocol.LoggerPayload
	raw     string
	isRaw   bool
}

// Server is a scriptable fake RCON server listening on 127.0.0.1.
// Wrong passwords are answered with id -1 like a Source RCON server.
type Server struct {
	ln net.Listener

	mu           sync.Mutex
	password     string
	version      int
	onCommand    func(body string) Reply
	silentLogger bool
	loggerDelay  time.Duration
	received     []protocol.Packet
	pending      []pendingLog
	conns        []net.Conn
	accepted     int
	closed       bool

	wg sync.WaitGroup
}

// Start listens on an ephemeral port and serves until the test ends.
func Start(t testing.TB, password string) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &Server{password: password, version: protocol.ProtocolVersion, ln: ln}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// SetVersion changes the version returned by the protocol check.
func (s *Server) SetVersion(v int) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

// OnCommand installs a handler for command frames. Without one the
// server replies with the command text.
func (s *Server) OnCommand(fn func(body string) Reply) {
	s.mu.Lock()
	s.onCommand = fn
	s.mu.Unlock()
}

// SetSilentLogger makes the server ignore logger polls.
func (s *Server) SetSilentLogger(on bool) {
	s.mu.Lock()
	s.silentLogger = on
	s.mu.Unlock()
}

// SetLoggerDelay holds every logger reply back by d.
func (s *Server) SetLoggerDelay(d time.Duration) {
	s.mu.Lock()
	s.loggerDelay = d
	s.mu.Unlock()
}

// Host returns the listening IP.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// PushLog queues a logger payload for the next poll.
func (s *Server) PushLog(text string, status *protocol.Status) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingLog{payload: protocol.LoggerPayload{Logger: text, Status: status}})
	s.mu.Unlock()
}

// PushRawLog queues a logger reply body sent verbatim.
func (s *Server) PushRawLog(body string) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingLog{raw: body, isRaw: true})
	s.mu.Unlock()
}

// Received returns a copy of every frame read so far.
func (s *Server) Received() []protocol.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Packet(nil), s.received...)
}

// Count returns how many received frames carried the given id tag.
func (s *Server) Count(id int32) int {
	n := 0
	for _, p := range s.Received() {
		if p.ID == id {
			n++
		}
	}
	return n
}

// Accepted returns the number of connections accepted.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Close stops the listener and drops every connection.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	s.closed = true
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns = append(s.conns, conn)
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	for {
		p, err := protocol.ReadPacket(conn)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, *p)
		s.mu.Unlock()

		r := s.answer(p)
		if r.Silent {
			continue
		}
		if r.Delay > 0 {
			time.Sleep(r.Delay)
		}
		if r.Raw != nil {
			if _, err := conn.Write(r.Raw); err != nil {
				return
			}
		} else if err := protocol.WritePacket(conn, &protocol.Packet{ID: r.ID, Type: r.Type, Body: r.Body}); err != nil {
			return
		}
		if r.Close {
			return
		}
	}
}

func (s *Server) answer(p *protocol.Packet) Reply {
	s.mu.Lock()
	password, version := s.password, s.version
	onCommand, silent, loggerDelay := s.onCommand, s.silentLogger, s.loggerDelay
	s.mu.Unlock()

	switch {
	case p.Type == protocol.TypeAuth:
		if p.Body == password {
			return Reply{ID: protocol.IDAuthorize, Type: protocol.TypeAuthResponse}
		}
		return Reply{ID: -1, Type: protocol.TypeAuthResponse}

	case p.ID == protocol.IDProtocolCheck:
		return Reply{ID: protocol.IDProtocolCheck, Type: protocol.TypeResponseValue, Body: strconv.Itoa(version)}

	case p.ID == protocol.IDCommand:
		if onCommand != nil {
			return onCommand(p.Body)
		}
		return Reply{ID: protocol.IDCommand, Type: protocol.TypeResponseValue, Body: p.Body}

	case p.ID == protocol.IDLogger:
		if silent {
			return Reply{Silent: true}
		}
		return Reply{ID: protocol.IDLogger, Type: protocol.TypeResponseValue, Body: s.nextLog(), Delay: loggerDelay}
	}
	return Reply{ID: p.ID, Type: protocol.TypeResponseValue}
}

func (s *Server) nextLog() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return ""
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	switch {
	case next.isRaw:
		return next.raw
	case s.version <= protocol.LegacyProtocolVersion:
		return next.payload.Logger
	}
	body, _ := protocol.EncodeLoggerPayload(next.payload)
	return body
}
