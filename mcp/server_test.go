package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(ServerConfig{
		Info: ServerInfo{Name: "test-server", Version: "1.0.0"},
	})
	err := s.Register(Tool{
		Name:        "echo",
		Description: "Echo arguments back",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"echoed": args}, nil
	})
	if err != nil {
		t.Fatalf("Register(echo) error = %v", err)
	}
	err = s.Register(Tool{
		Name: "fail",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("bad arguments")
	})
	if err != nil {
		t.Fatalf("Register(fail) error = %v", err)
	}
	return s
}

// serve feeds the input lines through the server and returns one decoded
// response per non-notification line.
func serve(t *testing.T, s *Server, lines ...string) []map[string]any {
	t.Helper()
	input := strings.Join(lines, "\n") + "\n"
	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal(response) error = %v, line = %s", err, scanner.Text())
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServerInitializeEchoesID(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1", len(responses))
	}
	resp := responses[0]
	if resp["id"] != float64(1) {
		t.Fatalf("response id = %v, want 1", resp["id"])
	}
	result, _ := resp["result"].(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Fatalf("protocolVersion = %v, want 2024-11-05", result["protocolVersion"])
	}
	serverInfo, _ := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != "test-server" {
		t.Fatalf("serverInfo.name = %v, want test-server", serverInfo["name"])
	}
}

func TestServerToolsListStable(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)

	if len(responses) != 2 {
		t.Fatalf("len(responses) = %d, want 2", len(responses))
	}
	first, _ := json.Marshal(responses[0]["result"])
	second, _ := json.Marshal(responses[1]["result"])
	if !bytes.Equal(first, second) {
		t.Fatalf("tools/list not stable across calls: %s vs %s", first, second)
	}

	result, _ := responses[0]["result"].(map[string]any)
	tools, _ := result["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2", len(tools))
	}
	firstTool, _ := tools[0].(map[string]any)
	if firstTool["name"] != "echo" {
		t.Fatalf("tools[0].name = %v, want echo (registration order)", firstTool["name"])
	}
}

func TestServerToolsCallWithoutInitialize(t *testing.T) {
	// Permissive serving: no handshake gating.
	s := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`)

	resp := responses[0]
	if resp["error"] != nil {
		t.Fatalf("unexpected protocol error: %v", resp["error"])
	}
	result, _ := resp["result"].(map[string]any)
	echoed, _ := result["echoed"].(map[string]any)
	if echoed["x"] != float64(1) {
		t.Fatalf("echoed.x = %v, want 1", echoed["x"])
	}
}

func TestServerUnknownToolName(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}`)

	errObj, _ := responses[0]["error"].(map[string]any)
	if errObj == nil {
		t.Fatal("expected error object for unknown tool")
	}
	if errObj["code"] != float64(-32601) {
		t.Fatalf("error code = %v, want -32601", errObj["code"])
	}
	if errObj["message"] != "Method not found" {
		t.Fatalf("error message = %v, want Method not found", errObj["message"])
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":4,"method":"resources/list","params":{}}`)

	errObj, _ := responses[0]["error"].(map[string]any)
	if errObj["code"] != float64(-32601) {
		t.Fatalf("error code = %v, want -32601", errObj["code"])
	}
	if responses[0]["id"] != float64(4) {
		t.Fatalf("response id = %v, want 4", responses[0]["id"])
	}
}

func TestServerToolErrorIsResultPayload(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"fail","arguments":{}}}`)

	resp := responses[0]
	if resp["error"] != nil {
		t.Fatalf("tool failure must not be a protocol error, got %v", resp["error"])
	}
	result, _ := resp["result"].(map[string]any)
	if result["error"] != "bad arguments" {
		t.Fatalf("result.error = %v, want bad arguments", result["error"])
	}
}

func TestServerParseErrorThenRecovers(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s,
		`{not json`,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
	)

	if len(responses) != 2 {
		t.Fatalf("len(responses) = %d, want 2", len(responses))
	}

	first := responses[0]
	if id, present := first["id"]; !present || id != nil {
		t.Fatalf("parse error response id = %v, want explicit null", id)
	}
	errObj, _ := first["error"].(map[string]any)
	if errObj["code"] != float64(-32700) {
		t.Fatalf("error code = %v, want -32700", errObj["code"])
	}

	second := responses[1]
	if second["id"] != float64(1) {
		t.Fatalf("second response id = %v, want 1", second["id"])
	}
	if second["result"] == nil {
		t.Fatal("initialize after parse error did not succeed")
	}
}

func TestServerPanicSurfacesAsToolError(t *testing.T) {
	s := NewServer(ServerConfig{Info: ServerInfo{Name: "panicky"}})
	err := s.Register(Tool{Name: "boom"}, func(ctx context.Context, args map[string]any) (any, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	responses := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"boom"}}`)
	result, _ := responses[0]["result"].(map[string]any)
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "kaboom") {
		t.Fatalf("result.error = %q, want panic message", msg)
	}
}

func TestServerIgnoresNotifications(t *testing.T) {
	s := newTestServer(t)
	responses := serve(t, s,
		`{"jsonrpc":"2.0","method":"notifications/initialized","params":{}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)

	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1 (notification must not be answered)", len(responses))
	}
	if responses[0]["id"] != float64(2) {
		t.Fatalf("response id = %v, want 2", responses[0]["id"])
	}
}

func TestServerNilToolResultIsEmptyObject(t *testing.T) {
	s := NewServer(ServerConfig{Info: ServerInfo{Name: "quiet"}})
	err := s.Register(Tool{Name: "noop"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	responses := serve(t, s, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"noop"}}`)
	resp := responses[0]
	if resp["error"] != nil {
		t.Fatalf("unexpected protocol error: %v", resp["error"])
	}
	result, present := resp["result"]
	if !present {
		t.Fatal("response has no result field")
	}
	obj, ok := result.(map[string]any)
	if !ok || len(obj) != 0 {
		t.Fatalf("result = %v, want empty object", result)
	}
}

func TestServerRegisterDuplicate(t *testing.T) {
	s := newTestServer(t)
	err := s.Register(Tool{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("Register(duplicate) error = nil, want non-nil")
	}
}

func TestServerStopsOnEOF(t *testing.T) {
	s := newTestServer(t)
	var out bytes.Buffer
	r, w := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), r, &out)
	}()

	if _, err := io.WriteString(w, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n"); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Serve() error = %v, want nil on EOF", err)
	}
}
