package client

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"genircon/config"
	rcerr "genircon/internal/errors"
	"genircon/internal/protocol"
	"genircon/internal/session"
	"genircon/internal/store"
	"genircon/internal/textformat"
	"genircon/util"
)

// command is one client-local verb.
type command struct {
	usage       string
	description string
	run         func(ctx context.Context, args []string)
}

func (c *Client) commandTable() map[string]*command {
	return map[string]*command{
		"connect": {
			usage:       "connect <host> <port> <password> <timeout> (SessionID)",
			description: "Connect to a server. If SessionID is empty, client will auto generate one.",
			run:         c.cmdConnect,
		},
		"disconnect": {
			usage:       "disconnect (Session ID)",
			description: "Disconnect from a session",
			run:         c.cmdDisconnect,
		},
		"exit": {
			usage:       "exit",
			description: "Shutdown this program and exit",
			run:         func(context.Context, []string) { c.exit() },
		},
		"help": {
			usage:       "help (CommandName)",
			description: "Show the help menu",
			run:         c.cmdHelp,
		},
		"history": {
			usage:       "history (Count)",
			description: "Show the last commands sent to the current session",
			run:         c.cmdHistory,
		},
		"list": {
			usage:       "list",
			description: "List all connected sessions",
			run:         c.cmdList,
		},
		"session": {
			usage:       "session <SessionID>",
			description: "Change current session",
			run:         c.cmdSession,
		},
		"stats": {
			usage:       "stats",
			description: "Show connection statistics",
			run:         c.cmdStats,
		},
		"version": {
			usage:       "version",
			description: "Gets the version of this program",
			run:         c.cmdVersion,
		},
	}
}

// Dispatch handles one console line. "/verb" lines naming a local
// command run here; everything else goes to the current session.
func (c *Client) Dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if verb, ok := strings.CutPrefix(fields[0], "/"); ok {
		if cmd, ok := c.commands[strings.ToLower(verb)]; ok {
			cmd.run(ctx, fields[1:])
			return
		}
	}
	c.forward(ctx, line)
}

// forward sends line to the current session and records it.
func (c *Client) forward(ctx context.Context, line string) {
	s := c.registry.Current()
	if s == nil {
		c.logger.Warn(noSessionHint)
		return
	}

	resp, _, err := s.SendCommand(line, true)
	switch {
	case err == nil:
	case rcerr.Is(err, rcerr.ErrNotConnected):
		c.logger.Warn("Session %s is not connected", s.ID())
		return
	default:
		if rcerr.IsTimeout(err) {
			c.logger.Warn("Session %s did not answer in time", s.ID())
		}
		c.checkFault(s, err)
		return
	}
	c.record(ctx, s, line, resp)
}

func (c *Client) record(ctx context.Context, s *session.Session, line, resp string) {
	if c.store == nil {
		return
	}
	err := c.store.RecordCommand(ctx, &store.CommandRecord{
		SessionID: s.ID(),
		Address:   s.Addr(),
		Command:   line,
		Response:  resp,
		SentAt:    time.Now(),
	})
	if err != nil {
		c.logger.Debug("history: %v", err)
	}
}

// ── Local commands ───────────────────────────────────────────────────

func (c *Client) cmdConnect(ctx context.Context, args []string) {
	if len(args) < 4 {
		c.logger.Warn("Wrong format! Please try again")
		return
	}
	host := args[0]
	port, err := config.ParsePort(args[1])
	if err != nil {
		c.logger.Warn("Wrong format! %v", err)
		return
	}
	secs, err := strconv.ParseFloat(args[3], 64)
	if err != nil || secs <= 0 {
		c.logger.Warn("Wrong format! Invalid timeout %q", args[3])
		return
	}

	t := Target{
		Host:     host,
		Port:     port,
		Password: args[2],
		Timeout:  time.Duration(secs * float64(time.Second)),
	}
	if len(args) > 4 {
		t.ID = args[4]
	}
	c.open(ctx, t)
}

// open creates, connects and selects a session for t.
func (c *Client) open(ctx context.Context, t Target) {
	id := t.ID
	if id == "" {
		id = c.registry.NextID()
	}
	addr := util.FormatAddr(t.Host, t.Port)
	c.logger.Notice("GeniRCON session has been created! ID: %s%s", textformat.Gold, id)
	c.logger.Info("Connecting to %s ...", addr)

	ip, ok := c.resolver.Resolve(t.Host)
	if !ok {
		c.logger.Error("Failed to connect to %s: unable to resolve host", addr)
		return
	}

	_, err := c.registry.Open(ctx, session.Config{
		ID:           id,
		Host:         ip,
		Port:         t.Port,
		Password:     t.Password,
		Timeout:      t.Timeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		AcceptLegacy: c.cfg.AcceptLegacy,
	})
	if err != nil {
		c.logger.Error("Failed to connect to %s: %v", addr, err)
		return
	}
	c.logger.Info("Connected!")
}

func (c *Client) cmdDisconnect(_ context.Context, args []string) {
	id := c.registry.CurrentID()
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		c.logger.Warn("Current session is empty!")
		return
	}
	if err := c.registry.Remove(id); err != nil {
		c.logger.Warn("Invalid SessionID!")
	}
}

func (c *Client) cmdSession(_ context.Context, args []string) {
	if len(args) != 1 {
		c.logger.Warn("Wrong format! Please try again")
		return
	}
	id := args[0]
	s, ok := c.registry.Get(id)
	if !ok {
		c.logger.Alert("Invalid session id %s", id)
		return
	}
	if err := c.registry.SetCurrent(id); err != nil && !s.Ready() {
		c.logger.Error("Session %s (%s) was closed: %v", id, s.Addr(), err)
		c.registry.Remove(id) //nolint:errcheck
		return
	}
	c.logger.Info("Current session has successfully changed to %s%s", textformat.Green, id)
}

func (c *Client) cmdList(context.Context, []string) {
	list := c.registry.List()
	c.logger.Info("There are %s%d%s connected sessions:", textformat.Green, len(list), textformat.White)
	for _, s := range list {
		c.logger.Info("SessionID: %s%s%s Address: %s%s%s Timeout: %s%s",
			textformat.Aqua, s.ID, textformat.White,
			textformat.Yellow, util.FormatAddr(s.Host, s.Port), textformat.White,
			textformat.DarkPurple, formatNumber(s.Timeout.Seconds()))
	}
}

func (c *Client) cmdHelp(_ context.Context, args []string) {
	if len(args) == 0 {
		names := make([]string, 0, len(c.commands))
		for name := range c.commands {
			names = append(names, name)
		}
		sort.Strings(names)

		c.logger.Info("-------  Help  -------")
		for _, name := range names {
			c.logger.Info("%s/%s: %s%s", textformat.DarkGreen, name, textformat.White, c.commands[name].description)
		}
		return
	}

	name := strings.TrimPrefix(args[0], "/")
	cmd, ok := c.commands[strings.ToLower(name)]
	if !ok {
		c.logger.Alert("No help for %s", args[0])
		return
	}
	c.logger.Info("%s-------%s  Help: /%s  %s-------", textformat.Yellow, textformat.White, name, textformat.Yellow)
	c.logger.Info("%sDescription: %s%s", textformat.Gold, textformat.White, cmd.description)
	c.logger.Info("%sUsage: %s/%s", textformat.Gold, textformat.White, cmd.usage)
}

func (c *Client) cmdVersion(context.Context, []string) {
	c.logger.Info("%s%s%s [Version: %s%s%s] (Protocol version: %s%d%s)",
		textformat.Aqua, Name, textformat.White,
		textformat.LightPurple, Version, textformat.White,
		textformat.Gold, protocol.ProtocolVersion, textformat.White)
}

func (c *Client) cmdStats(context.Context, []string) {
	for _, line := range strings.Split(c.metrics.JSON(), "\n") {
		c.logger.Info("%s", line)
	}
}

func (c *Client) cmdHistory(ctx context.Context, args []string) {
	if c.store == nil {
		c.logger.Warn("Command history is disabled, start with --history-db <path>")
		return
	}
	limit := config.DefaultHistoryLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			c.logger.Warn("Wrong format! Please try again")
			return
		}
		limit = n
	}

	recs, err := c.store.RecentCommands(ctx, c.registry.CurrentID(), limit)
	if err != nil {
		c.logger.Error("Unable to read command history: %v", err)
		return
	}
	if len(recs) == 0 {
		c.logger.Info("No commands recorded yet")
		return
	}
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		c.logger.Info("%s%s %s%s%s %s",
			textformat.Gray, r.SentAt.Local().Format("2006-01-02 15:04:05"),
			textformat.Aqua, r.SessionID, textformat.White, r.Command)
	}
}
