// Package store persists the commands an operator sends so they can be
// recalled with /history across runs.
package store

import (
	"context"
	"time"
)

// Store is the command history backend.
type Store interface {
	RecordCommand(ctx context.Context, rec *CommandRecord) error
	// RecentCommands returns up to limit records for sessionID, newest
	// first. An empty sessionID matches every session.
	RecentCommands(ctx context.Context, sessionID string, limit int) ([]*CommandRecord, error)

	// Close releases database resources.
	Close() error
}

// CommandRecord is one command sent to a server.
type CommandRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Address   string    `json:"address"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	SentAt    time.Time `json:"sent_at"`
}
