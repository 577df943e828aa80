package graphite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxSendRetries   = 1
	defaultKeepAlive = 30 * time.Second
)

// State is the collector connection state.
// Params: none.
// Returns: enum value.
type State uint8

const (
	// StateDisconnected means no socket is open.
	StateDisconnected State = iota
	// StateConnected means a socket is open and writable.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Dialer opens outbound connections; *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ClientOptions configures a collector client.
// Params: Address host:port; Timeout dial/write bound (0 = none); ReconnectInterval pause before retry;
// Dialer optional transport; Logger/Stats/OnStateChange optional observers.
// Returns: input for NewClient.
type ClientOptions struct {
	Address           string
	Timeout           time.Duration
	ReconnectInterval time.Duration
	Dialer            Dialer
	Logger            *slog.Logger
	Stats             *Stats
	OnStateChange     func(State)
}

// Client owns the single TCP connection to the collector.
// Params: built by NewClient; not safe for concurrent use.
// Returns: lazily connecting line writer with one reconnect retry.
type Client struct {
	address           string
	timeout           time.Duration
	reconnectInterval time.Duration
	dialer            Dialer
	logger            *slog.Logger
	stats             *Stats
	onStateChange     func(State)

	conn   net.Conn
	connID string
	state  State
}

// NewClient validates options; no connection is opened until the first Send.
// Params: opts client options.
// Returns: client or ErrConfiguration for an invalid address.
func NewClient(opts ClientOptions) (*Client, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, configError("collector address is empty")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, configError("collector address %q: %v", address, err)
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: opts.Timeout, KeepAlive: defaultKeepAlive}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		address:           address,
		timeout:           opts.Timeout,
		reconnectInterval: opts.ReconnectInterval,
		dialer:            dialer,
		logger:            logger.With(slog.String("addr", address)),
		stats:             opts.Stats,
		onStateChange:     opts.OnStateChange,
	}, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state
}

// EnsureConnected dials the collector when no socket is open.
// Params: ctx bounds the dial together with the configured timeout.
// Returns: ErrConnection-wrapped dial error.
func (c *Client) EnsureConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.address)
	if err != nil {
		c.stats.connectionError("dial")
		c.logger.Warn("graphite connect failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: dial %s: %w", ErrConnection, c.address, err)
	}

	c.conn = conn
	c.connID = uuid.NewString()
	c.stats.connected()
	c.setState(StateConnected)
	c.logger.Info("connected to graphite", slog.String("conn_id", c.connID))
	return nil
}

// Send writes one line, reconnecting and retrying exactly once on failure.
// Params: ctx bounds dials and the reconnect pause; line full protocol line.
// Returns: nil on success or *DeliveryError (matches ErrDelivery) after the retry fails.
func (c *Client) Send(ctx context.Context, line string) error {
	var lastErr error
	for attempt := 0; attempt <= maxSendRetries; attempt++ {
		if attempt > 0 {
			if err := c.waitReconnect(ctx); err != nil {
				lastErr = err
				break
			}
			c.logger.Info("reconnecting to graphite", slog.Int("attempt", attempt))
		}

		if err := c.EnsureConnected(ctx); err != nil {
			lastErr = err
			continue
		}

		if err := c.write(line); err != nil {
			c.stats.connectionError("write")
			c.logger.Warn(
				"connection to graphite server died",
				slog.String("conn_id", c.connID),
				slog.String("error", err.Error()),
			)
			c.disconnect()
			lastErr = err
			continue
		}
		return nil
	}

	return &DeliveryError{Dropped: 1, Err: lastErr}
}

// Close closes the open socket, if any.
// Params: none.
// Returns: socket close error.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.setState(StateDisconnected)
	c.stats.disconnected()
	return err
}

// write sends line under the configured write deadline.
// Params: line full protocol line.
// Returns: ErrConnection-wrapped write error.
func (c *Client) write(line string) error {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("%w: set write deadline %s: %w", ErrConnection, c.address, err)
		}
	}
	if _, err := io.WriteString(c.conn, line); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrConnection, c.address, err)
	}
	return nil
}

// disconnect drops a broken socket.
func (c *Client) disconnect() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.stats.disconnected()
	c.setState(StateDisconnected)
}

// waitReconnect pauses before the retry.
// Params: ctx cancels the pause.
// Returns: context error when canceled.
func (c *Client) waitReconnect(ctx context.Context) error {
	if c.reconnectInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.reconnectInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) setState(next State) {
	if c.state == next {
		return
	}
	c.state = next
	if c.onStateChange != nil {
		c.onStateChange(next)
	}
}
