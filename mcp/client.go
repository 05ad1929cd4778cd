package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	defaultClientName       = "boardpilot"
	defaultClientVersion    = "dev"
	defaultHandshakeTimeout = 5 * time.Second
)

// Transport is the message transport contract used by the client core.
// The stdio implementation spawns the server as a subprocess; the
// reconnecting wrapper redials a broken transport.
type Transport interface {
	Send(ctx context.Context, message Message) error
	Receive(ctx context.Context) (Message, error)
	Close(ctx context.Context) error
}

// Options configures client identity and timeouts.
type Options struct {
	ProtocolVersion string
	ClientInfo      ClientInfo
	Capabilities    map[string]any

	// HandshakeTimeout bounds the initialize exchange. Steady-state calls
	// are bounded only by the caller's context.
	HandshakeTimeout time.Duration
}

// Client drives one JSON-RPC connection to a tool server. Calls are
// serialized: one outstanding request per connection at a time.
type Client struct {
	transport Transport
	options   Options

	mu          sync.Mutex
	nextID      int64
	initialized bool
	initResult  InitializeResult
}

// NewClient returns a new client for a given transport.
func NewClient(transport Transport, options Options) *Client {
	if options.ProtocolVersion == "" {
		options.ProtocolVersion = ProtocolVersion
	}
	if options.ClientInfo.Name == "" {
		options.ClientInfo.Name = defaultClientName
	}
	if options.ClientInfo.Version == "" {
		options.ClientInfo.Version = defaultClientVersion
	}
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = defaultHandshakeTimeout
	}

	return &Client{
		transport: transport,
		options:   options,
		nextID:    1,
	}
}

// Initialize performs the initialize handshake. It is idempotent: repeated
// calls return the cached result without touching the transport.
func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	if c == nil {
		return InitializeResult{}, errors.New("mcp: client is nil")
	}

	c.mu.Lock()
	alreadyInitialized := c.initialized
	cachedResult := c.initResult
	c.mu.Unlock()
	if alreadyInitialized {
		return cachedResult, nil
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, c.options.HandshakeTimeout)
	defer cancel()

	params := InitializeParams{
		ProtocolVersion: c.options.ProtocolVersion,
		Capabilities:    cloneMap(c.options.Capabilities),
		ClientInfo:      c.options.ClientInfo,
	}

	var result InitializeResult
	if err := c.callInto(handshakeCtx, "initialize", params, &result); err != nil {
		return InitializeResult{}, err
	}

	c.mu.Lock()
	c.initialized = true
	c.initResult = result
	c.mu.Unlock()

	return result, nil
}

// ListTools returns the server's tool catalog from tools/list.
func (c *Client) ListTools(ctx context.Context) (ToolsListResult, error) {
	var result ToolsListResult
	if err := c.callInto(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return ToolsListResult{}, err
	}
	return result, nil
}

// CallTool executes a tool by name and returns the raw result payload.
// Tool-level failures arrive inside the payload (an "error" field), not as
// a Go error; callers must inspect the result content.
func (c *Client) CallTool(ctx context.Context, params ToolsCallParams) (json.RawMessage, error) {
	return c.call(ctx, "tools/call", params)
}

// Close terminates the connection. In-flight responses are not drained.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.transport == nil {
		return nil
	}
	return c.transport.Close(ctx)
}

func (c *Client) callInto(ctx context.Context, method string, params any, out any) error {
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c == nil || c.transport == nil {
		return nil, &RequestError{Method: method, Err: errors.New("transport is nil")}
	}

	paramsRaw, err := marshalParams(params)
	if err != nil {
		return nil, &RequestError{Method: method, Err: err}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	request := Message{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsRaw,
	}
	if err := c.transport.Send(ctx, request); err != nil {
		return nil, &RequestError{Method: method, Err: err}
	}

	for {
		response, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, &RequestError{Method: method, Err: err}
		}
		if response.JSONRPC != "" && response.JSONRPC != jsonRPCVersion {
			return nil, &RequestError{Method: method, Err: fmt.Errorf("unsupported jsonrpc version %q", response.JSONRPC)}
		}

		// Skip server notifications and responses to other request ids.
		if response.ID == 0 || response.ID != id {
			continue
		}

		if response.Error != nil {
			return nil, &RequestError{Method: method, Err: response.Error}
		}
		return response.Result, nil
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return data, nil
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
