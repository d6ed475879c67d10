// Package transport provides abstractions for opening the TCP stream an
// RCON session runs over. Transports handle how the stream is reached
// (directly or through an SSH jump host), independent of the frames
// exchanged over it.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound session connections.  Implementations include
// a plain TCP dialer and an SSH dialer that forwards the connection
// through a jump host.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH client).  Stateless dialers return nil.
	Close() error
}
