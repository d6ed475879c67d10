// Package client runs the interactive console: one tick loop that owns
// every session, dispatches console lines and prints what the servers
// push back.
package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"genircon/config"
	"genircon/internal/console"
	"genircon/internal/metrics"
	"genircon/internal/protocol"
	"genircon/internal/session"
	"genircon/internal/store"
	"genircon/internal/textformat"
	"genircon/internal/transport"
	"genircon/util"
)

// Version is the client release shown by /version and the banner.
const Version = "v1.2.0 alpha"

// Name prefixes the terminal title.
const Name = "GeniRCON Client"

const noSessionHint = "Current session is empty! Type '/connect' to create a new session or type '/session' to switch to another session."

// Target is a server to open a session to. An empty ID is generated.
type Target struct {
	Host     string
	Port     int
	Password string
	Timeout  time.Duration
	ID       string
}

// Options wires a Client. Only Config is required. Initial, when set, is
// connected once the console is up.
type Options struct {
	Initial  *Target
	Config   *config.Config
	Logger   *util.Logger
	Dialer   transport.Dialer
	Source   console.LineSource
	Store    store.Store
	Metrics  *metrics.Collector
	Resolver *util.Resolver
}

// Client is the tick loop and everything it owns. Apart from the console
// reader goroutine, all of its state is touched only from Run.
type Client struct {
	cfg      *config.Config
	logger   *util.Logger
	dialer   transport.Dialer
	registry *session.Registry
	queue    *console.Queue
	reader   *console.Reader
	resolver *util.Resolver
	store    store.Store
	metrics  *metrics.Collector
	commands map[string]*command
	initial  *Target

	ticks      int
	titleEvery int
	running    bool
}

// New builds a Client from opts, filling in defaults for anything unset.
func New(opts Options) *Client {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(cfg.Verbose)
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &transport.TCPDialer{}
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = util.NewResolver(cfg.NoDNS)
	}
	src := opts.Source
	if src == nil {
		src = console.OpenSource(console.SourceConfig{
			DisableReadline: cfg.DisableReadline,
			HistoryFile:     cfg.HistoryFile,
		})
	}

	queue := &console.Queue{}
	c := &Client{
		cfg:        cfg,
		logger:     logger,
		dialer:     dialer,
		registry:   session.NewRegistry(dialer, logger, opts.Metrics),
		queue:      queue,
		reader:     console.NewReader(src, queue, logger),
		resolver:   resolver,
		store:      opts.Store,
		metrics:    opts.Metrics,
		initial:    opts.Initial,
		titleEvery: config.DefaultTitleEvery,
		running:    true,
	}
	c.commands = c.commandTable()
	return c
}

// Registry exposes the session registry.
func (c *Client) Registry() *session.Registry { return c.registry }

// Enqueue queues a line as if the operator had typed it.
func (c *Client) Enqueue(line string) { c.queue.Push(line) }

// Running reports whether the loop has not been stopped.
func (c *Client) Running() bool { return c.running }

// Run prints the banner, starts the console reader and ticks until
// /exit, console exhaustion or ctx cancellation. Every session is
// disconnected before it returns.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("%s %s%s", Name, textformat.Green, Version)
	c.logger.Info("GeniRCON Protocol Version: %s%d", textformat.LightPurple, protocol.ProtocolVersion)
	c.logger.Info("Initializing ConsoleDaemon ...")
	c.reader.Start()
	c.logger.Info("Done! For help, type '/help'")
	if c.initial != nil {
		c.open(ctx, *c.initial)
	}

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for c.Tick(ctx) {
		if c.reader.Exhausted() && c.queue.Len() == 0 {
			c.logger.Debug("console input closed")
			c.exit()
			break
		}
		select {
		case <-ctx.Done():
			c.exit()
		case <-ticker.C:
		}
	}

	c.logger.WriteRaw(Name + " has stopped\n")
	return nil
}

// Tick runs one loop iteration: at most one console line, then a logger
// poll of the current session. It reports whether the loop should go on.
func (c *Client) Tick(ctx context.Context) bool {
	if !c.running {
		return false
	}
	c.ticks++

	if line, ok := c.reader.Line(); ok {
		c.Dispatch(ctx, line)
	}
	if !c.running {
		return false
	}

	if s := c.registry.Current(); s != nil {
		c.poll(s)
		if c.ticks%c.titleEvery == 0 {
			c.writeTitle(s)
		}
	}
	return c.running
}

// poll pulls logger data from s and prints everything it has buffered.
func (c *Client) poll(s *session.Session) {
	var err error
	if s.Ready() {
		_, err = s.PollLogger()
	}
	c.printResponse(s)
	if err != nil {
		c.checkFault(s, err)
	}
}

// printResponse logs each buffered line of s under "<id> / <label>".
func (c *Client) printResponse(s *session.Session) {
	res, ok := s.TakeResponse()
	if !ok {
		return
	}
	for _, line := range strings.Split(res, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		color, label, msg := ParseLine(line)
		c.logger.Log(msg, util.LogNormal, s.ID()+" / "+label, textformat.Color(color))
	}
}

// checkFault drops s from the registry when err closed it.
func (c *Client) checkFault(s *session.Session, err error) {
	if s.State() != session.Disconnected {
		c.logger.Warn("Session %s: %v", s.ID(), err)
		return
	}
	c.logger.Error("Session %s (%s) was closed: %v", s.ID(), s.Addr(), err)
	c.registry.Remove(s.ID()) //nolint:errcheck
}

func (c *Client) writeTitle(s *session.Session) {
	st := s.Status()
	if st == nil || !c.logger.ANSI() {
		return
	}
	c.logger.WriteRaw(FormatTitle(s.ID(), st))
}

// exit disconnects every session and stops the console and the loop.
func (c *Client) exit() {
	if !c.running {
		return
	}
	c.logger.Info("Stopping %s ...", Name)
	c.registry.CloseAll()
	c.reader.Shutdown()
	c.running = false
}

// ParseLine splits a pushed log line of the form "color|label|message".
// color is the server's field as sent; textformat.Color renders it. Lines
// with fewer than three fields are plain INFO text in white ("f").
func ParseLine(line string) (color, label, message string) {
	parts := strings.Split(line, "|")
	if len(parts) < 3 {
		return "f", "INFO", line
	}
	return parts[0], parts[1], strings.Join(parts[2:], "|")
}

// FormatTitle renders the terminal title escape for a status record.
func FormatTitle(id string, st *protocol.Status) string {
	return fmt.Sprintf("\x1b]0;%s - %s | Online %d/%d | Memory %s | U %s D %s kB/s | TPS %s | Load %s%%\x07",
		Name, id, st.Online, st.Max, st.Usage,
		formatNumber(st.Upload), formatNumber(st.Download), formatNumber(st.TPS), formatNumber(st.Load))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
