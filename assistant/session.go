// Package assistant runs chat sessions that combine a local model with
// the tool registry. Inference happens on a background goroutine; the
// caller receives the answer on a channel, so a UI event loop never
// blocks on the model.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/traceworks/boardpilot/llm"
	"github.com/traceworks/boardpilot/mcp"
)

// historyCap bounds the retained exchanges (six question/answer pairs).
const historyCap = 6

// Generator produces model completions.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// ToolRouter dispatches tool calls by name. *registry.Registry satisfies
// it.
type ToolRouter interface {
	Call(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error)
	Tools() []mcp.Tool
}

// Exchange is one question/answer pair in the session history.
type Exchange struct {
	Question string
	Answer   string
	Asked    time.Time
}

// Result is delivered exactly once per Ask.
type Result struct {
	Answer    string
	ToolUsed  string
	ToolError error
	Err       error
}

// Config configures a session.
type Config struct {
	Generator    Generator
	Router       ToolRouter
	Logger       *slog.Logger
	Options      llm.Options
	BoardContext string
}

// Session is a single conversation. Methods are safe for concurrent use.
type Session struct {
	id     string
	gen    Generator
	router ToolRouter
	logger *slog.Logger
	opts   llm.Options
	board  string

	mu      sync.Mutex
	history []Exchange
}

// NewSession creates a conversation with a fresh identifier.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("assistant: generator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := cfg.Options
	if opts == (llm.Options{}) {
		opts = llm.DefaultOptions()
	}
	return &Session{
		id:     uuid.NewString(),
		gen:    cfg.Generator,
		router: cfg.Router,
		logger: logger,
		opts:   opts,
		board:  cfg.BoardContext,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetBoardContext replaces the design summary included in prompts.
func (s *Session) SetBoardContext(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = summary
}

// History returns a copy of the retained exchanges.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Ask submits a question and returns immediately. The returned channel
// receives exactly one Result and is then closed; the model call and any
// tool execution run on a background goroutine.
func (s *Session) Ask(ctx context.Context, question string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		ch <- s.answer(ctx, question)
	}()
	return ch
}

func (s *Session) answer(ctx context.Context, question string) Result {
	prompt := s.buildPrompt(question)

	response, err := s.gen.Generate(ctx, prompt, s.opts)
	if err != nil {
		return Result{Err: fmt.Errorf("assistant: model call failed: %w", err)}
	}

	result := Result{Answer: response}
	if name, args, ok := parseToolDirective(response); ok && s.router != nil {
		result.ToolUsed = name
		payload, err := s.router.Call(ctx, name, args)
		if err != nil {
			result.ToolError = err
			s.logger.Warn("tool call failed", "session", s.id, "tool", name, "error", err)
			payload = json.RawMessage(fmt.Sprintf(`{"error":%q}`, err.Error()))
		}

		followUp := prompt + "\n\nTool " + name + " returned:\n" + string(payload) +
			"\n\nAnswer the user's question using this tool result:"
		final, err := s.gen.Generate(ctx, followUp, s.opts)
		if err != nil {
			return Result{ToolUsed: name, ToolError: result.ToolError,
				Err: fmt.Errorf("assistant: follow-up model call failed: %w", err)}
		}
		result.Answer = final
	}

	s.mu.Lock()
	s.history = append(s.history, Exchange{Question: question, Answer: result.Answer, Asked: time.Now()})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.mu.Unlock()

	return result
}

// buildPrompt assembles the system preamble, tool inventory, board
// context, recent history, and the new question.
func (s *Session) buildPrompt(question string) string {
	s.mu.Lock()
	board := s.board
	history := make([]Exchange, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("You are a helpful PCB and schematic design assistant. ")
	b.WriteString("Give specific answers referencing actual component values and designators when possible.\n")

	if s.router != nil {
		tools := s.router.Tools()
		if len(tools) > 0 {
			b.WriteString("\nAvailable tools:\n")
			for _, tool := range tools {
				fmt.Fprintf(&b, "  - %s: %s\n", tool.Name, tool.Description)
			}
			b.WriteString("To use a tool, reply with only a single line of JSON: ")
			b.WriteString(`{"tool": "<name>", "arguments": {...}}` + "\n")
		}
	}
	if board != "" {
		b.WriteString("\nCURRENT DESIGN CONTEXT:\n")
		b.WriteString(board)
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", truncate(ex.Question, 200), truncate(ex.Answer, 200))
		}
	}
	b.WriteString("\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a specific, helpful response based on the actual design data when applicable:")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// parseToolDirective recognizes a response that is a single JSON object
// naming a tool to run.
func parseToolDirective(response string) (string, map[string]any, bool) {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", nil, false
	}
	var directive struct {
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(trimmed), &directive); err != nil {
		return "", nil, false
	}
	if directive.Tool == "" {
		return "", nil, false
	}
	return directive.Tool, directive.Arguments, true
}
