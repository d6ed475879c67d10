package session

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	rcerr "genircon/internal/errors"
	"genircon/internal/metrics"
	"genircon/internal/transport"
	"genircon/util"
)

// Generated ids fall in [MinGeneratedID, MaxGeneratedID).
const (
	MinGeneratedID = 100000000
	MaxGeneratedID = 200000000
)

// Info is a listing entry.
type Info struct {
	ID      string
	Host    string
	Port    int
	Timeout time.Duration
	State   State
}

// Registry maps session ids to sessions and tracks the current one.
// The current id, when set, always names a registered session. Like
// Session, a Registry belongs to the tick loop.
type Registry struct {
	dialer  transport.Dialer
	logger  *util.Logger
	metrics *metrics.Collector

	sessions map[string]*Session
	current  string
	newID    func() string
}

// NewRegistry returns an empty registry whose sessions dial through dialer.
func NewRegistry(dialer transport.Dialer, logger *util.Logger, m *metrics.Collector) *Registry {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Registry{
		dialer:   dialer,
		logger:   logger,
		metrics:  m,
		sessions: make(map[string]*Session),
		newID: func() string {
			return strconv.Itoa(MinGeneratedID + rand.IntN(MaxGeneratedID-MinGeneratedID))
		},
	}
}

// NextID returns an unused generated id.
func (r *Registry) NextID() string {
	for {
		id := r.newID()
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
}

// Create registers a new, unconnected session and returns it. An empty
// cfg.ID gets a generated one. An explicit id that is already taken
// replaces the old session, which is disconnected first.
func (r *Registry) Create(cfg Config) *Session {
	if cfg.ID == "" {
		cfg.ID = r.NextID()
	}
	s := New(cfg, r.dialer, r.logger, r.metrics)
	r.insert(s)
	return s
}

// Open connects a new session and registers it as current once the
// handshake succeeds. On failure the session is closed and the registry
// is left as it was.
func (r *Registry) Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ID == "" {
		cfg.ID = r.NextID()
	}
	s := New(cfg, r.dialer, r.logger, r.metrics)
	if err := s.Connect(ctx); err != nil {
		s.Disconnect()
		return s, err
	}
	r.insert(s)
	r.current = s.ID()
	return s, nil
}

func (r *Registry) insert(s *Session) {
	if old, ok := r.sessions[s.ID()]; ok && old != s {
		r.logger.Warn("Session ID %s was already in use, replacing %s", s.ID(), old.Addr())
		old.Disconnect()
	}
	r.sessions[s.ID()] = s
}

// SetCurrent switches the current session and repeats its protocol
// check. The pointer moves even when the check fails; the check's error
// is returned for reporting.
func (r *Registry) SetCurrent(id string) error {
	s, ok := r.sessions[id]
	if !ok {
		return &rcerr.UnknownSessionError{ID: id}
	}
	r.current = id
	return s.CheckProtocol()
}

// Remove disconnects and forgets a session, clearing the current pointer
// if it named it.
func (r *Registry) Remove(id string) error {
	s, ok := r.sessions[id]
	if !ok {
		return &rcerr.UnknownSessionError{ID: id}
	}
	s.Disconnect()
	delete(r.sessions, id)
	if r.current == id {
		r.current = ""
	}
	return nil
}

// Current returns the current session or nil.
func (r *Registry) Current() *Session {
	if r.current == "" {
		return nil
	}
	return r.sessions[r.current]
}

// CurrentID returns the current id or "".
func (r *Registry) CurrentID() string { return r.current }

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// List returns a snapshot of every session, ordered by id.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, Info{ID: id, Host: s.Host(), Port: s.Port(), Timeout: s.Timeout(), State: s.State()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CloseAll disconnects and forgets every session.
func (r *Registry) CloseAll() {
	for id, s := range r.sessions {
		s.Disconnect()
		delete(r.sessions, id)
	}
	r.current = ""
}
