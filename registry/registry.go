// Package registry routes tool calls to the server connection that owns
// each tool name. It is the single entry point higher layers use to invoke
// MCP tools without knowing which subprocess implements them.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/traceworks/boardpilot/mcp"
)

// Conn is the slice of the MCP client the registry needs. *mcp.Client
// satisfies it.
type Conn interface {
	ListTools(ctx context.Context) (mcp.ToolsListResult, error)
	CallTool(ctx context.Context, params mcp.ToolsCallParams) (json.RawMessage, error)
	Close(ctx context.Context) error
}

// NotFoundError reports a call to a tool name no connected server
// advertises. It is raised before any subprocess I/O happens.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: tool %q is not registered", e.Tool)
}

// DuplicateToolError reports a tool name advertised by two servers.
// Registration of the second server is rejected rather than silently
// shadowing the first.
type DuplicateToolError struct {
	Tool           string
	ExistingServer string
	NewServer      string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("registry: tool %q from server %q collides with server %q",
		e.Tool, e.NewServer, e.ExistingServer)
}

type entry struct {
	server string
	conn   Conn
	tool   mcp.Tool
}

// CallObserver receives the outcome of every dispatched call. Used to
// feed telemetry without the registry depending on an exporter.
type CallObserver func(tool, server string, duration time.Duration, err error)

// Registry maintains the tool-name to connection map. It is owned by the
// component that manages server lifecycle; Register/UnregisterAll run on
// that owner while Call may run concurrently from worker goroutines.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	tools    map[string]entry
	servers  map[string]Conn
	observer CallObserver
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		tools:   make(map[string]entry),
		servers: make(map[string]Conn),
	}
}

// Register queries the connection's tool catalog and records every
// advertised name. A name already owned by another server fails the whole
// registration with a *DuplicateToolError and records nothing.
func (r *Registry) Register(ctx context.Context, serverName string, conn Conn) error {
	if r == nil {
		return errors.New("registry: registry is nil")
	}
	if serverName == "" {
		return errors.New("registry: server name is required")
	}
	if conn == nil {
		return errors.New("registry: connection is nil")
	}

	result, err := conn.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("registry: list tools on %q: %w", serverName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[serverName]; exists {
		return fmt.Errorf("registry: server %q is already registered", serverName)
	}
	for _, tool := range result.Tools {
		if existing, taken := r.tools[tool.Name]; taken && existing.server != serverName {
			return &DuplicateToolError{
				Tool:           tool.Name,
				ExistingServer: existing.server,
				NewServer:      serverName,
			}
		}
	}

	r.servers[serverName] = conn
	for _, tool := range result.Tools {
		r.tools[tool.Name] = entry{server: serverName, conn: conn, tool: tool}
	}
	r.logger.Info("registered mcp server",
		"server", serverName,
		"tools", len(result.Tools),
	)
	return nil
}

// Call routes a tool invocation to the owning connection with a fresh
// request id and returns the unwrapped result payload.
func (r *Registry) Call(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	if r == nil {
		return nil, errors.New("registry: registry is nil")
	}

	r.mu.RLock()
	e, ok := r.tools[name]
	observer := r.observer
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Tool: name}
	}

	start := time.Now()
	result, err := e.conn.CallTool(ctx, mcp.ToolsCallParams{
		Name:      name,
		Arguments: arguments,
	})
	if observer != nil {
		observer(name, e.server, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: call %q on %q: %w", name, e.server, err)
	}
	return result, nil
}

// SetObserver installs the call observer. Pass nil to remove it.
func (r *Registry) SetObserver(fn CallObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// ListAvailable returns a sorted snapshot of registered tool names as of
// the last Register call for each server.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the descriptor for a registered tool name.
func (r *Registry) Describe(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.tool, ok
}

// Tools returns all registered descriptors sorted by name.
func (r *Registry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Servers returns the names of registered servers, sorted.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connection returns the connection registered under a server name.
func (r *Registry) Connection(serverName string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.servers[serverName]
	return conn, ok
}

// Unregister disconnects one server and drops its tool entries.
func (r *Registry) Unregister(ctx context.Context, serverName string) error {
	r.mu.Lock()
	conn, ok := r.servers[serverName]
	if ok {
		delete(r.servers, serverName)
		for name, e := range r.tools {
			if e.server == serverName {
				delete(r.tools, name)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("registry: server %q is not registered", serverName)
	}
	if err := conn.Close(ctx); err != nil {
		return fmt.Errorf("registry: close %q: %w", serverName, err)
	}
	return nil
}

// UnregisterAll disconnects every server and clears the map. Used at
// shutdown; close failures are logged, not returned.
func (r *Registry) UnregisterAll(ctx context.Context) {
	r.mu.Lock()
	conns := r.servers
	r.servers = make(map[string]Conn)
	r.tools = make(map[string]entry)
	r.mu.Unlock()

	for name, conn := range conns {
		if err := conn.Close(ctx); err != nil {
			r.logger.Warn("closing mcp server", "server", name, "error", err)
		}
	}
}
