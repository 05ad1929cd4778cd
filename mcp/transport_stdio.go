package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

// StdioTransportConfig configures a subprocess stdio transport.
type StdioTransportConfig struct {
	Command string
	Args    []string
	Env     map[string]string

	// Logger receives the subprocess stderr as diagnostics. Stderr is never
	// parsed as protocol data. Defaults to slog.Default().
	Logger *slog.Logger
}

// StdioTransport runs a tool server as a subprocess and exchanges one
// JSON-RPC message per line over its stdin/stdout.
type StdioTransport struct {
	mu     sync.Mutex
	cfg    StdioTransportConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	recvCh chan Message
	errCh  chan error
	waitCh chan struct{}
	closed bool
}

// NewStdioTransport spawns the server process. A command that cannot be
// found or started fails here, before any protocol traffic.
func NewStdioTransport(ctx context.Context, cfg StdioTransportConfig) (*StdioTransport, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("mcp: stdio command is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &StdioTransport{
		cfg:    cfg,
		recvCh: make(chan Message, 64),
		errCh:  make(chan error, 1),
		waitCh: make(chan struct{}),
	}
	if err := t.start(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *StdioTransport) start(ctx context.Context) error {
	args := slices.Clone(t.cfg.Args)
	// #nosec G204 -- command/args come from the operator's server config.
	cmd := exec.CommandContext(ctx, t.cfg.Command, args...)
	if len(t.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), flattenEnv(t.cfg.Env)...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("mcp: stdio open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mcp: stdio start %q: %w", t.cfg.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin

	go t.readLoop(stdout)
	go t.drainStderr(stderr)
	go t.waitLoop()

	return nil
}

// readLoop decodes one message per line. Anything the server writes to
// stdout must be a complete JSON document on its own line.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var message Message
		if err := json.Unmarshal(line, &message); err != nil {
			t.sendErr(fmt.Errorf("mcp: stdio decode response line: %w", err))
			return
		}
		select {
		case t.recvCh <- message:
		default:
			t.sendErr(errors.New("mcp: stdio receive queue is full"))
			return
		}
	}

	if err := scanner.Err(); err != nil {
		t.sendErr(fmt.Errorf("mcp: stdio read: %w", err))
		return
	}
	t.sendErr(io.EOF)
}

func (t *StdioTransport) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		t.cfg.Logger.Debug("mcp server stderr",
			"command", t.cfg.Command,
			"line", scanner.Text(),
		)
	}
}

func (t *StdioTransport) waitLoop() {
	defer close(t.waitCh)

	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()

	if cmd == nil {
		return
	}
	err := cmd.Wait()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	if err != nil && !closed {
		t.sendErr(fmt.Errorf("mcp: stdio process exited: %w", err))
	}
}

// Send writes one JSON line to the subprocess stdin. No batching.
func (t *StdioTransport) Send(ctx context.Context, message Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("mcp: stdio transport is closed")
	}
	if t.stdin == nil {
		return errors.New("mcp: stdio stdin is not available")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mcp: encode request: %w", err)
	}
	data = append(data, '\n')

	if _, err := t.stdin.Write(data); err != nil {
		return fmt.Errorf("mcp: write request: %w", err)
	}
	return nil
}

// Receive blocks until the next message, a transport failure, or context
// cancellation. EOF before a full line surfaces as io.EOF. Messages already
// delivered win over a racing transport failure, so a response written just
// before the process exits is not lost.
func (t *StdioTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case message := <-t.recvCh:
		return message, nil
	default:
	}

	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case message := <-t.recvCh:
		return message, nil
	case err := <-t.errCh:
		select {
		case message := <-t.recvCh:
			t.sendErr(err)
			return message, nil
		default:
		}
		return Message{}, err
	}
}

// Close kills the subprocess and reaps it. In-flight responses are lost.
func (t *StdioTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	stdin := t.stdin
	cmd := t.cmd
	waitCh := t.waitCh
	t.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if waitCh != nil {
		select {
		case <-waitCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *StdioTransport) sendErr(err error) {
	select {
	case t.errCh <- err:
	default:
	}
}

func flattenEnv(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(values))
	for _, key := range keys {
		out = append(out, key+"="+values[key])
	}
	return out
}
