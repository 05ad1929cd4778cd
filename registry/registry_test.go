package registry

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/traceworks/boardpilot/mcp"
)

type fakeConn struct {
	tools    []mcp.Tool
	listErr  error
	callErr  error
	result   json.RawMessage
	calls    int32
	lastName string
	lastArgs map[string]any
	closed   bool
	closeErr error
}

func (f *fakeConn) ListTools(ctx context.Context) (mcp.ToolsListResult, error) {
	if f.listErr != nil {
		return mcp.ToolsListResult{}, f.listErr
	}
	return mcp.ToolsListResult{Tools: f.tools}, nil
}

func (f *fakeConn) CallTool(ctx context.Context, params mcp.ToolsCallParams) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastName = params.Name
	f.lastArgs = params.Arguments
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.result, nil
}

func (f *fakeConn) Close(ctx context.Context) error {
	f.closed = true
	return f.closeErr
}

func TestRegisterThenListAvailable(t *testing.T) {
	conn := &fakeConn{
		tools: []mcp.Tool{
			{Name: "search_components"},
			{Name: "get_pricing"},
			{Name: "check_availability"},
		},
	}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", conn); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got := r.ListAvailable()
	want := []string{"check_availability", "get_pricing", "search_components"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListAvailable() = %v, want %v", got, want)
	}
}

func TestCallRoutesToOwningConnection(t *testing.T) {
	catalog := &fakeConn{
		tools:  []mcp.Tool{{Name: "search_components"}},
		result: json.RawMessage(`{"components":[],"total_found":0}`),
	}
	pricing := &fakeConn{
		tools:  []mcp.Tool{{Name: "search_parts"}},
		result: json.RawMessage(`{"parts":[]}`),
	}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", catalog); err != nil {
		t.Fatalf("Register(catalog) error = %v", err)
	}
	if err := r.Register(context.Background(), "octopart-api", pricing); err != nil {
		t.Fatalf("Register(pricing) error = %v", err)
	}

	raw, err := r.Call(context.Background(), "search_parts", map[string]any{"query": "10k resistor"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(raw) != `{"parts":[]}` {
		t.Fatalf("Call() result = %s", raw)
	}
	if atomic.LoadInt32(&pricing.calls) != 1 {
		t.Fatalf("pricing connection calls = %d, want 1", pricing.calls)
	}
	if atomic.LoadInt32(&catalog.calls) != 0 {
		t.Fatalf("catalog connection calls = %d, want 0", catalog.calls)
	}
	if pricing.lastArgs["query"] != "10k resistor" {
		t.Fatalf("arguments not forwarded: %v", pricing.lastArgs)
	}
}

func TestCallUnregisteredToolDoesNoIO(t *testing.T) {
	conn := &fakeConn{tools: []mcp.Tool{{Name: "search_components"}}}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", conn); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := r.Call(context.Background(), "does_not_exist", nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error type = %T, want *NotFoundError", err)
	}
	if notFound.Tool != "does_not_exist" {
		t.Fatalf("NotFoundError.Tool = %q, want does_not_exist", notFound.Tool)
	}
	if atomic.LoadInt32(&conn.calls) != 0 {
		t.Fatalf("connection calls = %d, want 0 (no subprocess I/O)", conn.calls)
	}
}

func TestRegisterRejectsDuplicateToolNames(t *testing.T) {
	first := &fakeConn{tools: []mcp.Tool{{Name: "get_pricing"}}}
	second := &fakeConn{tools: []mcp.Tool{{Name: "get_pricing"}, {Name: "search_parts"}}}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", first); err != nil {
		t.Fatalf("Register(first) error = %v", err)
	}

	err := r.Register(context.Background(), "octopart-api", second)
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("error type = %T, want *DuplicateToolError", err)
	}
	if dup.ExistingServer != "component-database" || dup.NewServer != "octopart-api" {
		t.Fatalf("DuplicateToolError = %+v", dup)
	}

	// Rejection must be all-or-nothing: the colliding server contributes
	// no tools at all.
	if _, err := r.Call(context.Background(), "search_parts", nil); err == nil {
		t.Fatal("search_parts registered despite rejected registration")
	}
	if got := r.Servers(); !reflect.DeepEqual(got, []string{"component-database"}) {
		t.Fatalf("Servers() = %v, want [component-database]", got)
	}
}

func TestRegisterListToolsFailure(t *testing.T) {
	conn := &fakeConn{listErr: errors.New("broken pipe")}

	r := New(nil)
	err := r.Register(context.Background(), "component-database", conn)
	if err == nil {
		t.Fatal("Register() error = nil, want non-nil")
	}
	if len(r.ListAvailable()) != 0 {
		t.Fatalf("ListAvailable() = %v, want empty", r.ListAvailable())
	}
}

func TestCallTransportFailurePropagates(t *testing.T) {
	conn := &fakeConn{
		tools:   []mcp.Tool{{Name: "search_components"}},
		callErr: errors.New("process exited"),
	}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", conn); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := r.Call(context.Background(), "search_components", nil)
	if err == nil {
		t.Fatal("Call() error = nil, want transport failure")
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		t.Fatal("transport failure must not surface as NotFoundError")
	}
}

func TestUnregisterAllClosesConnections(t *testing.T) {
	catalog := &fakeConn{tools: []mcp.Tool{{Name: "search_components"}}}
	pricing := &fakeConn{tools: []mcp.Tool{{Name: "search_parts"}}}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", catalog); err != nil {
		t.Fatalf("Register(catalog) error = %v", err)
	}
	if err := r.Register(context.Background(), "octopart-api", pricing); err != nil {
		t.Fatalf("Register(pricing) error = %v", err)
	}

	r.UnregisterAll(context.Background())

	if !catalog.closed || !pricing.closed {
		t.Fatalf("connections closed = (%v, %v), want (true, true)", catalog.closed, pricing.closed)
	}
	if len(r.ListAvailable()) != 0 {
		t.Fatalf("ListAvailable() after UnregisterAll = %v, want empty", r.ListAvailable())
	}
	if len(r.Servers()) != 0 {
		t.Fatalf("Servers() after UnregisterAll = %v, want empty", r.Servers())
	}
}

func TestUnregisterSingleServer(t *testing.T) {
	catalog := &fakeConn{tools: []mcp.Tool{{Name: "search_components"}}}
	pricing := &fakeConn{tools: []mcp.Tool{{Name: "search_parts"}}}

	r := New(nil)
	if err := r.Register(context.Background(), "component-database", catalog); err != nil {
		t.Fatalf("Register(catalog) error = %v", err)
	}
	if err := r.Register(context.Background(), "octopart-api", pricing); err != nil {
		t.Fatalf("Register(pricing) error = %v", err)
	}

	if err := r.Unregister(context.Background(), "component-database"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if !catalog.closed {
		t.Fatal("catalog connection not closed")
	}
	if _, err := r.Call(context.Background(), "search_components", nil); err == nil {
		t.Fatal("search_components still routable after Unregister")
	}
	if _, err := r.Call(context.Background(), "search_parts", nil); err != nil {
		t.Fatalf("search_parts should survive: %v", err)
	}
}

func TestCallObserverSeesOutcome(t *testing.T) {
	conn := &fakeConn{
		tools:  []mcp.Tool{{Name: "analyze_pcb"}},
		result: json.RawMessage(`{}`),
	}
	r := New(nil)
	if err := r.Register(context.Background(), "kicad-tools", conn); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	type observed struct {
		tool, server string
		err          error
	}
	var seen []observed
	r.SetObserver(func(tool, server string, d time.Duration, err error) {
		seen = append(seen, observed{tool: tool, server: server, err: err})
	})

	if _, err := r.Call(context.Background(), "analyze_pcb", nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	conn.callErr = errors.New("pipe closed")
	if _, err := r.Call(context.Background(), "analyze_pcb", nil); err == nil {
		t.Fatal("Call() with transport failure succeeded")
	}
	if _, err := r.Call(context.Background(), "nope", nil); err == nil {
		t.Fatal("Call() on unknown tool succeeded")
	}

	if len(seen) != 2 {
		t.Fatalf("observer saw %d calls, want 2 (unknown tool is not dispatched)", len(seen))
	}
	if seen[0].server != "kicad-tools" || seen[0].err != nil {
		t.Fatalf("first observation = %+v", seen[0])
	}
	if seen[1].err == nil {
		t.Fatal("second observation missing the failure")
	}
}
