package session

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"

	rcerr "genircon/internal/errors"
	"genircon/internal/protocol"
	"genircon/internal/protocol/protocoltest"
	"genircon/internal/transport"
	"genircon/util"
)

func newTestRegistry(t *testing.T) (*Registry, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := util.NewLogger(1)
	logger.SetOutput(&buf)
	logger.SetTimestamps(false)
	r := NewRegistry(&transport.TCPDialer{}, logger, nil)
	t.Cleanup(r.CloseAll)
	return r, &buf
}

func serverConfig(srv *protocoltest.Server, id, password string) Config {
	return Config{
		ID:          id,
		Host:        srv.Host(),
		Port:        srv.Port(),
		Password:    password,
		Timeout:     2 * time.Second,
		ReadTimeout: 200 * time.Millisecond,
	}
}

func TestRegistry_CreateGeneratesID(t *testing.T) {
	r, _ := newTestRegistry(t)

	s := r.Create(Config{Host: "127.0.0.1", Port: 1})
	id, err := strconv.Atoi(s.ID())
	if err != nil {
		t.Fatalf("generated id %q is not numeric", s.ID())
	}
	if id < MinGeneratedID || id >= MaxGeneratedID {
		t.Errorf("id %d out of range", id)
	}
	if r.Current() != nil {
		t.Error("Create must not make the session current")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d", r.Len())
	}
}

func TestRegistry_NextIDSkipsTaken(t *testing.T) {
	r, _ := newTestRegistry(t)
	ids := []string{"150000000", "150000000", "150000001"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	r.Create(Config{})
	if got := r.NextID(); got != "150000001" {
		t.Errorf("NextID = %q, want 150000001", got)
	}
}

func TestRegistry_CreateCollisionReplaces(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	r, log := newTestRegistry(t)

	first, err := r.Open(context.Background(), serverConfig(srv, "A", "pw"))
	if err != nil {
		t.Fatal(err)
	}
	second := r.Create(Config{ID: "A", Host: "127.0.0.1", Port: 2})

	if got, _ := r.Get("A"); got != second {
		t.Error("explicit id should overwrite the existing entry")
	}
	if first.State() != Disconnected {
		t.Error("displaced session should be disconnected")
	}
	if !strings.Contains(log.String(), "already in use") {
		t.Errorf("expected collision warning, log = %q", log.String())
	}
	if r.Len() != 1 {
		t.Errorf("len = %d", r.Len())
	}
}

func TestRegistry_OpenMakesCurrent(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	r, _ := newTestRegistry(t)

	s, err := r.Open(context.Background(), serverConfig(srv, "", "pw"))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Ready() {
		t.Fatal("opened session should be ready")
	}
	if r.Current() != s || r.CurrentID() != s.ID() {
		t.Error("opened session should become current")
	}
}

func TestRegistry_OpenFailureLeavesRegistryUnchanged(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	r, _ := newTestRegistry(t)

	if _, err := r.Open(context.Background(), serverConfig(srv, "A", "pw")); err != nil {
		t.Fatal(err)
	}

	s, err := r.Open(context.Background(), serverConfig(srv, "B", "wrongpass"))
	if !rcerr.IsHandshake(err) {
		t.Fatalf("err = %v, want handshake failure", err)
	}
	if s.State() != Disconnected {
		t.Error("failed session should be closed")
	}
	if _, ok := r.Get("B"); ok {
		t.Error("failed session must not be registered")
	}
	if r.Len() != 1 || r.CurrentID() != "A" {
		t.Errorf("registry changed: len=%d current=%q", r.Len(), r.CurrentID())
	}
}

func TestRegistry_OpenVersionMismatchClosesSocket(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	srv.SetVersion(2)
	r, _ := newTestRegistry(t)

	s, err := r.Open(context.Background(), serverConfig(srv, "old", "pw"))
	if !rcerr.Is(err, rcerr.ErrVersionMismatch) {
		t.Fatalf("err = %v", err)
	}
	if s.State() != Disconnected || r.Len() != 0 {
		t.Errorf("state = %s len = %d", s.State(), r.Len())
	}
}

func TestRegistry_SetCurrent(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	r, _ := newTestRegistry(t)

	if _, err := r.Open(context.Background(), serverConfig(srv, "A", "pw")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(context.Background(), serverConfig(srv, "B", "pw")); err != nil {
		t.Fatal(err)
	}
	before := srv.Count(protocol.IDProtocolCheck)

	if err := r.SetCurrent("A"); err != nil {
		t.Fatal(err)
	}
	if r.CurrentID() != "A" {
		t.Errorf("current = %q", r.CurrentID())
	}
	if srv.Count(protocol.IDProtocolCheck) != before+1 {
		t.Error("switching sessions should repeat the protocol check")
	}

	err := r.SetCurrent("nope")
	var ue *rcerr.UnknownSessionError
	if !rcerr.As(err, &ue) || ue.ID != "nope" {
		t.Errorf("err = %v, want UnknownSessionError", err)
	}
	if r.CurrentID() != "A" {
		t.Error("unknown id must not move the pointer")
	}
}

func TestRegistry_SetCurrentUnconnected(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Create(Config{ID: "idle"})

	err := r.SetCurrent("idle")
	if !rcerr.Is(err, rcerr.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if r.CurrentID() != "idle" {
		t.Error("pointer should move even when the check fails")
	}
}

func TestRegistry_RemoveCurrentClearsPointer(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Create(Config{ID: "A"})
	r.Create(Config{ID: "B"})
	r.SetCurrent("B") //nolint:errcheck // unconnected, check fails

	if err := r.Remove("B"); err != nil {
		t.Fatal(err)
	}
	if r.Current() != nil || r.CurrentID() != "" {
		t.Error("removing the current session should clear the pointer")
	}
	list := r.List()
	if len(list) != 1 || list[0].ID != "A" {
		t.Errorf("list = %+v", list)
	}

	var ue *rcerr.UnknownSessionError
	if err := r.Remove("B"); !rcerr.As(err, &ue) {
		t.Errorf("second remove err = %v", err)
	}
}

func TestRegistry_RemoveOtherKeepsPointer(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Create(Config{ID: "A"})
	r.Create(Config{ID: "B"})
	r.SetCurrent("A") //nolint:errcheck

	if err := r.Remove("B"); err != nil {
		t.Fatal(err)
	}
	if r.CurrentID() != "A" {
		t.Errorf("current = %q", r.CurrentID())
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, id := range []string{"c", "a", "b"} {
		r.Create(Config{ID: id, Host: "10.0.0.1", Port: 19132, Timeout: 5 * time.Second})
	}
	list := r.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, want)
		}
	}
	if list[0].Host != "10.0.0.1" || list[0].Port != 19132 || list[0].Timeout != 5*time.Second {
		t.Errorf("entry = %+v", list[0])
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	srv := protocoltest.Start(t, "pw")
	r, _ := newTestRegistry(t)

	a, _ := r.Open(context.Background(), serverConfig(srv, "A", "pw"))
	b, _ := r.Open(context.Background(), serverConfig(srv, "B", "pw"))

	r.CloseAll()
	if r.Len() != 0 || r.Current() != nil {
		t.Errorf("len = %d current = %v", r.Len(), r.Current())
	}
	if a.State() != Disconnected || b.State() != Disconnected {
		t.Error("every session should be disconnected")
	}
}

// TestRegistry_CurrentAlwaysLive drives a random mix of operations and
// checks after every step that the current pointer is empty or names a
// registered session.
func TestRegistry_CurrentAlwaysLive(t *testing.T) {
	srv := protocoltest.Start(t, "secret")
	r, _ := newTestRegistry(t)
	rng := rand.New(rand.NewPCG(7, 11))
	ids := []string{"A", "B", "C", "D"}
	ctx := context.Background()

	for step := 0; step < 200; step++ {
		id := ids[rng.IntN(len(ids))]
		var op string
		switch rng.IntN(6) {
		case 0:
			op = "create " + id
			r.Create(Config{ID: id, Host: "127.0.0.1", Port: 1})
		case 1:
			op = "open " + id
			if _, err := r.Open(ctx, serverConfig(srv, id, "secret")); err != nil {
				t.Fatalf("step %d %s: %v", step, op, err)
			}
		case 2:
			op = "open-rejected " + id
			if _, err := r.Open(ctx, serverConfig(srv, id, "wrong")); err == nil {
				t.Fatalf("step %d %s: expected failure", step, op)
			}
		case 3:
			op = "set-current " + id
			r.SetCurrent(id) //nolint:errcheck
		case 4:
			op = "remove " + id
			r.Remove(id) //nolint:errcheck
		default:
			if rng.IntN(4) != 0 {
				continue
			}
			op = "close-all"
			r.CloseAll()
		}

		cur := r.CurrentID()
		if cur != "" {
			if _, ok := r.Get(cur); !ok {
				t.Fatalf("step %d %s: current %q is not registered", step, op, cur)
			}
		}
		if (r.Current() == nil) != (cur == "") {
			t.Fatalf("step %d %s: Current() disagrees with CurrentID %q", step, op, cur)
		}
		if len(r.List()) != r.Len() {
			t.Fatalf("step %d %s: list has %d entries, len %d", step, op, len(r.List()), r.Len())
		}
	}
}
