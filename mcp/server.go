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
	"sync"
)

// maxLineBytes caps a single protocol line in either direction.
const maxLineBytes = 4 * 1024 * 1024

// Handler implements one tool. A returned error is a tool-level failure:
// it is reported inside a normal result payload, never as a JSON-RPC error.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ServerConfig configures a tool server's static identity.
type ServerConfig struct {
	Info            ServerInfo
	ProtocolVersion string
	Logger          *slog.Logger
}

// Server answers initialize, tools/list, and tools/call over a
// line-delimited JSON-RPC channel. It is permissive: tools/* requests are
// answered even without a prior initialize, and malformed input never
// terminates the serve loop.
type Server struct {
	info    ServerInfo
	version string
	logger  *slog.Logger

	mu       sync.RWMutex
	order    []string
	tools    map[string]Tool
	handlers map[string]Handler
}

// NewServer creates a server with the given identity.
func NewServer(cfg ServerConfig) *Server {
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = ProtocolVersion
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Server{
		info:     cfg.Info,
		version:  cfg.ProtocolVersion,
		logger:   cfg.Logger,
		tools:    make(map[string]Tool),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool to the catalog. Registering the same name twice
// is a programming error and is rejected.
func (s *Server) Register(tool Tool, handler Handler) error {
	if tool.Name == "" {
		return errors.New("mcp: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("mcp: tool %q handler is nil", tool.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[tool.Name]; exists {
		return fmt.Errorf("mcp: tool %q is already registered", tool.Name)
	}
	s.order = append(s.order, tool.Name)
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
	return nil
}

// Tools returns the catalog in registration order. The catalog is static:
// repeated calls return the same descriptors.
func (s *Server) Tools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// serverRequest keeps the id raw so responses echo it verbatim,
// whatever integer the caller chose.
type serverRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// serverResponse marshals a nil ID as null, which is only correct for
// responses to unparseable input.
type serverResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Run serves on the process's stdin/stdout until EOF or ctx cancellation.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one request per line from r and writes one response per line
// to w. Parse failures produce an error response with a null id and the
// loop continues with the next line.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req serverRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("unparseable request line", "error", err)
			if werr := s.write(w, serverResponse{
				JSONRPC: jsonRPCVersion,
				ID:      nil,
				Error: &RPCError{
					Code:    CodeParseError,
					Message: fmt.Sprintf("Parse error: %v", err),
				},
			}); werr != nil {
				return werr
			}
			continue
		}

		if isNotification(req.ID) {
			// JSON-RPC notifications get no response.
			s.logger.Debug("ignoring notification", "method", req.Method)
			continue
		}

		if err := s.write(w, s.dispatch(ctx, req)); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp: server read: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req serverRequest) serverResponse {
	switch req.Method {
	case "initialize":
		return s.respond(req, InitializeResult{
			ProtocolVersion: s.version,
			Capabilities: map[string]any{
				"tools": map[string]any{},
			},
			ServerInfo: s.info,
		})

	case "tools/list":
		return s.respond(req, ToolsListResult{Tools: s.Tools()})

	case "tools/call":
		return s.handleCall(ctx, req)

	default:
		return serverResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error: &RPCError{
				Code:    CodeMethodNotFound,
				Message: "Method not found",
			},
		}
	}
}

func (s *Server) handleCall(ctx context.Context, req serverRequest) serverResponse {
	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return serverResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error: &RPCError{
				Code:    CodeInternalError,
				Message: fmt.Sprintf("Internal error: decode params: %v", err),
			},
		}
	}

	s.mu.RLock()
	handler, ok := s.handlers[params.Name]
	s.mu.RUnlock()
	if !ok {
		return serverResponse{
			JSONRPC: jsonRPCVersion,
			ID:      req.ID,
			Error: &RPCError{
				Code:    CodeMethodNotFound,
				Message: "Method not found",
			},
		}
	}

	result, err := s.invoke(ctx, handler, params.Arguments)
	if err != nil {
		// Tool failures are domain data for the caller to inspect,
		// not protocol errors.
		s.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return s.respond(req, map[string]any{"error": err.Error()})
	}
	return s.respond(req, result)
}

func (s *Server) invoke(ctx context.Context, handler Handler, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return handler(ctx, args)
}

func (s *Server) respond(req serverRequest, result any) serverResponse {
	if result == nil {
		// A response carries exactly one of result or error; an empty
		// object stands in for handlers with nothing to report.
		result = map[string]any{}
	}
	return serverResponse{
		JSONRPC: jsonRPCVersion,
		ID:      req.ID,
		Result:  result,
	}
}

func (s *Server) write(w io.Writer, resp serverResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		resp = serverResponse{
			JSONRPC: jsonRPCVersion,
			ID:      resp.ID,
			Error: &RPCError{
				Code:    CodeInternalError,
				Message: fmt.Sprintf("Internal error: encode response: %v", err),
			},
		}
		if data, err = json.Marshal(resp); err != nil {
			return fmt.Errorf("mcp: encode error response: %w", err)
		}
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("mcp: write response: %w", err)
	}
	return nil
}

func isNotification(id json.RawMessage) bool {
	trimmed := bytes.TrimSpace(id)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
