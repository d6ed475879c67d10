package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	rcerr "genircon/internal/errors"
	"genircon/util"
)

// SSHConfig holds everything needed to reach an SSH jump host.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns host:port of the jump host.
func (c *SSHConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// SSHDialer forwards session connections through one SSH client.  The
// client is connected lazily on the first Dial and again on the next
// Dial after the jump host drops it.
type SSHDialer struct {
	config *SSHConfig
	logger *util.Logger

	mu      sync.Mutex
	client  *ssh.Client
	alive   bool
	breaker *breaker
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH jump host.  Nothing is dialled until the first Dial.
func NewSSHDialer(cfg *SSHConfig, logger *util.Logger) *SSHDialer {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHDialer{
		config:  cfg,
		logger:  logger,
		breaker: newBreaker(DefaultBreakerFailures, DefaultBreakerCooldown),
	}
}

// connect establishes the SSH client if not already connected.
func (d *SSHDialer) connect(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.alive && d.client != nil {
		return d.client, nil
	}
	if err := d.breaker.allow(); err != nil {
		return nil, rcerr.WrapSSH("connect", d.config.Host, d.config.Port, err)
	}
	client, err := d.handshake(ctx)
	d.breaker.record(err)
	if err != nil {
		return nil, err
	}

	d.client = client
	d.alive = true
	d.logger.Verbose("SSH tunnel established")

	go d.monitor(client)
	return client, nil
}

// handshake dials the jump host and completes SSH authentication.
func (d *SSHDialer) handshake(ctx context.Context) (*ssh.Client, error) {
	authMethods, err := BuildAuthMethods(d.config)
	if err != nil {
		return nil, rcerr.WrapSSH("auth", d.config.Host, d.config.Port, err)
	}
	hkCallback, err := hostKeyCallback(d.config)
	if err != nil {
		return nil, rcerr.WrapSSH("hostkey", d.config.Host, d.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            d.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         d.config.ConnTimeout,
	}

	addr := d.config.Addr()
	d.logger.Verbose("establishing SSH tunnel to %s@%s", d.config.User, addr)

	// Use a context-aware TCP dial so callers can cancel.
	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, rcerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, rcerr.WrapSSH("handshake", d.config.Host, d.config.Port, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Dial connects to address through the jump host.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("tunnel: dialing %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		if !d.IsAlive() {
			return nil, fmt.Errorf("tunnel dial %s: %w: %w", address, rcerr.ErrTunnelClosed, err)
		}
		return nil, fmt.Errorf("tunnel dial %s: %w", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alive = false
	if d.client != nil {
		err := d.client.Close()
		d.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the SSH client is still connected.
func (d *SSHDialer) IsAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

// monitor blocks until client closes and flips the alive flag, unless a
// newer client has replaced it.
func (d *SSHDialer) monitor(client *ssh.Client) {
	err := client.Wait()

	d.mu.Lock()
	if d.client == client {
		d.alive = false
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Debug("SSH tunnel closed: %v", err)
	} else {
		d.logger.Debug("SSH tunnel closed")
	}
}
