package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TransportDialer creates a fresh transport connection, typically by
// respawning the server subprocess.
type TransportDialer func(ctx context.Context) (Transport, error)

// ReconnectConfig bounds redial behavior.
type ReconnectConfig struct {
	// MaxAttempts is the number of tries per call; each retry runs on a
	// freshly dialed connection. Defaults to 3.
	MaxAttempts int
	// BaseBackoff doubles on every consecutive redial. Defaults to 200ms.
	BaseBackoff time.Duration
	Logger      *slog.Logger
}

// ReconnectingTransport wraps a transport and respawns the server on I/O
// failure. A request that was already sent on a dead connection is not
// replayed; the failure propagates to the caller, who decides whether to
// retry.
type ReconnectingTransport struct {
	mu      sync.Mutex
	dialer  TransportDialer
	config  ReconnectConfig
	current Transport
	closed  bool
}

// NewReconnectingTransport dials the initial connection.
func NewReconnectingTransport(ctx context.Context, dialer TransportDialer, cfg ReconnectConfig) (*ReconnectingTransport, error) {
	if dialer == nil {
		return nil, errors.New("mcp: reconnect dialer is nil")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	initial, err := dialer(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: initial dial failed: %w", err)
	}

	return &ReconnectingTransport{
		dialer:  dialer,
		config:  cfg,
		current: initial,
	}, nil
}

// Send forwards the message, respawning the server between attempts on
// failure.
func (t *ReconnectingTransport) Send(ctx context.Context, message Message) error {
	return t.withRedial(ctx, "send", func(conn Transport) error {
		return conn.Send(ctx, message)
	})
}

// Receive waits for a message, respawning the server between attempts on
// failure.
func (t *ReconnectingTransport) Receive(ctx context.Context) (Message, error) {
	var message Message
	err := t.withRedial(ctx, "receive", func(conn Transport) error {
		var opErr error
		message, opErr = conn.Receive(ctx)
		return opErr
	})
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

// Close closes the current transport and disables further redials.
func (t *ReconnectingTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	current := t.current
	t.current = nil
	t.mu.Unlock()

	if current != nil {
		return current.Close(ctx)
	}
	return nil
}

// withRedial runs fn against the live connection, tearing down and
// redialing between attempts.
func (t *ReconnectingTransport) withRedial(ctx context.Context, op string, fn func(Transport) error) error {
	var lastErr error
	for attempt := 0; attempt < t.config.MaxAttempts; attempt++ {
		conn, err := t.conn()
		if err != nil {
			return err
		}

		if lastErr = fn(conn); lastErr == nil {
			return nil
		}
		t.config.Logger.Warn("tool server connection failed",
			"op", op,
			"attempt", attempt+1,
			"error", lastErr,
		)

		if err := t.redial(ctx, attempt); err != nil {
			return err
		}
	}
	return fmt.Errorf("mcp: %s failed after %d attempts: %w", op, t.config.MaxAttempts, lastErr)
}

func (t *ReconnectingTransport) conn() (Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("mcp: reconnecting transport is closed")
	}
	if t.current == nil {
		return nil, errors.New("mcp: reconnecting transport has no active connection")
	}
	return t.current, nil
}

func (t *ReconnectingTransport) redial(ctx context.Context, attempt int) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("mcp: reconnecting transport is closed")
	}
	current := t.current
	t.current = nil
	t.mu.Unlock()

	if current != nil {
		_ = current.Close(ctx)
	}

	backoff := t.config.BaseBackoff * time.Duration(1<<attempt)
	timer := time.NewTimer(backoff)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	next, err := t.dialer(ctx)
	if err != nil {
		return fmt.Errorf("mcp: reconnect attempt %d failed: %w", attempt+1, err)
	}
	t.config.Logger.Info("tool server respawned", "attempt", attempt+1, "backoff", backoff)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = next.Close(ctx)
		return errors.New("mcp: reconnecting transport is closed")
	}
	t.current = next
	t.mu.Unlock()
	return nil
}
