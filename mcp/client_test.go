package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type mockTransport struct {
	mu           sync.Mutex
	closed       bool
	sendErr      error
	receiveErr   error
	responses    []Message
	lastRequests []Message
	handler      func(req Message) Message
}

func (m *mockTransport) Send(ctx context.Context, message Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}
	m.lastRequests = append(m.lastRequests, message)
	if m.handler != nil {
		m.responses = append(m.responses, m.handler(message))
	}
	return nil
}

func (m *mockTransport) Receive(ctx context.Context) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.receiveErr != nil {
		return Message{}, m.receiveErr
	}
	if len(m.responses) == 0 {
		return Message{}, errors.New("mock transport: no queued responses")
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

func (m *mockTransport) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestClientInitialize(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			if req.Method != "initialize" {
				return Message{
					JSONRPC: jsonRPCVersion,
					ID:      req.ID,
					Error: &RPCError{
						Code:    CodeMethodNotFound,
						Message: "Method not found",
					},
				}
			}
			params := decodeParams(t, req.Params)
			if params["protocolVersion"] != "2024-11-05" {
				t.Fatalf("protocolVersion = %v, want 2024-11-05", params["protocolVersion"])
			}
			clientInfo, _ := params["clientInfo"].(map[string]any)
			if clientInfo["name"] != "boardpilot-test" {
				t.Fatalf("clientInfo.name = %v, want boardpilot-test", clientInfo["name"])
			}

			result := InitializeResult{
				ProtocolVersion: ProtocolVersion,
				Capabilities: map[string]any{
					"tools": map[string]any{},
				},
				ServerInfo: ServerInfo{
					Name:    "component-database",
					Version: "1.0.0",
				},
			}
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  mustJSON(t, result),
			}
		},
	}

	client := NewClient(transport, Options{
		ClientInfo: ClientInfo{
			Name:    "boardpilot-test",
			Version: "0.1.0",
		},
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
	})

	result, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if result.ServerInfo.Name != "component-database" {
		t.Fatalf("ServerInfo.Name = %q, want component-database", result.ServerInfo.Name)
	}
}

func TestClientInitializeIsIdempotent(t *testing.T) {
	callCount := 0
	transport := &mockTransport{
		handler: func(req Message) Message {
			callCount++
			result := InitializeResult{
				ProtocolVersion: ProtocolVersion,
				ServerInfo: ServerInfo{
					Name: "component-database",
				},
			}
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  mustJSON(t, result),
			}
		},
	}

	client := NewClient(transport, Options{})

	first, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	second, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if first.ServerInfo.Name != second.ServerInfo.Name {
		t.Fatalf("cached initialize result mismatch: first=%q second=%q", first.ServerInfo.Name, second.ServerInfo.Name)
	}
	if callCount != 1 {
		t.Fatalf("initialize call count = %d, want 1", callCount)
	}
}

func TestClientRequestIDsAreMonotonic(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  mustJSON(t, ToolsListResult{Tools: []Tool{{Name: "search_components"}}}),
			}
		},
	}

	client := NewClient(transport, Options{})
	for i := 0; i < 3; i++ {
		if _, err := client.ListTools(context.Background()); err != nil {
			t.Fatalf("ListTools() #%d error = %v", i, err)
		}
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	for i, req := range transport.lastRequests {
		if req.ID != int64(i+1) {
			t.Fatalf("request %d id = %d, want %d", i, req.ID, i+1)
		}
	}
}

func TestClientListTools(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			if req.Method != "tools/list" {
				return Message{
					JSONRPC: jsonRPCVersion,
					ID:      req.ID,
					Error: &RPCError{
						Code:    CodeMethodNotFound,
						Message: "Method not found",
					},
				}
			}
			result := ToolsListResult{
				Tools: []Tool{
					{
						Name:        "search_components",
						Description: "Search for components by type and specifications",
						InputSchema: map[string]any{
							"type": "object",
						},
					},
				},
			}
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  mustJSON(t, result),
			}
		},
	}

	client := NewClient(transport, Options{})
	result, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(result.Tools) != 1 {
		t.Fatalf("len(Tools) = %d, want 1", len(result.Tools))
	}
	if result.Tools[0].Name != "search_components" {
		t.Fatalf("tool name = %q, want search_components", result.Tools[0].Name)
	}
}

func TestClientCallToolReturnsRawResult(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			if req.Method != "tools/call" {
				return Message{
					JSONRPC: jsonRPCVersion,
					ID:      req.ID,
					Error: &RPCError{
						Code:    CodeMethodNotFound,
						Message: "Method not found",
					},
				}
			}
			params := decodeParams(t, req.Params)
			if params["name"] != "search_components" {
				t.Fatalf("params.name = %v, want search_components", params["name"])
			}
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  json.RawMessage(`{"components":[],"total_found":0}`),
			}
		},
	}

	client := NewClient(transport, Options{})
	raw, err := client.CallTool(context.Background(), ToolsCallParams{
		Name: "search_components",
		Arguments: map[string]any{
			"type": "resistor",
		},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("Unmarshal(result) error = %v", err)
	}
	if result["total_found"] != float64(0) {
		t.Fatalf("total_found = %v, want 0", result["total_found"])
	}
}

func TestClientSkipsMismatchedResponseIDs(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Result:  mustJSON(t, ToolsListResult{}),
			}
		},
	}
	// Queue a stale response ahead of the real one.
	transport.responses = append(transport.responses, Message{
		JSONRPC: jsonRPCVersion,
		ID:      99,
		Result:  json.RawMessage(`{"stale":true}`),
	})

	client := NewClient(transport, Options{})
	if _, err := client.ListTools(context.Background()); err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
}

func TestClientRPCError(t *testing.T) {
	transport := &mockTransport{
		handler: func(req Message) Message {
			return Message{
				JSONRPC: jsonRPCVersion,
				ID:      req.ID,
				Error: &RPCError{
					Code:    CodeInternalError,
					Message: "Internal error",
				},
			}
		},
	}

	client := NewClient(transport, Options{})
	_, err := client.ListTools(context.Background())
	if err == nil {
		t.Fatal("ListTools() error = nil, want non-nil")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error does not wrap *RPCError: %v", err)
	}
	if rpcErr.Code != CodeInternalError {
		t.Fatalf("rpc error code = %d, want %d", rpcErr.Code, CodeInternalError)
	}
}

func TestClientTransportErrorPropagates(t *testing.T) {
	transport := &mockTransport{
		sendErr: errors.New("broken pipe"),
	}

	client := NewClient(transport, Options{})
	_, err := client.CallTool(context.Background(), ToolsCallParams{Name: "search_components"})
	if err == nil {
		t.Fatal("CallTool() error = nil, want non-nil")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	if reqErr.Method != "tools/call" {
		t.Fatalf("RequestError.Method = %q, want tools/call", reqErr.Method)
	}
}

func TestClientClose(t *testing.T) {
	transport := &mockTransport{}
	client := NewClient(transport, Options{})
	if err := client.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if !transport.closed {
		t.Fatal("transport.closed = false, want true")
	}
}

func mustJSON(t *testing.T, value any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return data
}

func decodeParams(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return obj
}
