package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/traceworks/boardpilot/assistant"
	"github.com/traceworks/boardpilot/health"
	"github.com/traceworks/boardpilot/llm"
)

// NewChatCmd creates the "chat" subcommand: an interactive design
// assistant REPL backed by the configured tool servers.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive design assistant session",
		RunE:  runChat,
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("model", "", "Override the configured Ollama model")
	cmd.Flags().String("context", "", "Design summary included in every prompt")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Ollama.Model = model
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	client := llm.NewClient(llm.ClientConfig{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Ollama.TimeoutDuration(),
	})
	if err := client.Ping(ctx); err != nil {
		return exitError(exitModel, "%v", err)
	}

	reg, cleanup, err := connectServers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Background probes flag a server that dies mid-conversation.
	watcher, err := health.NewScheduler(health.Config{
		Registry: reg,
		Handler:  logHealthEvent(logger),
		Logger:   logger,
		Schedule: cfg.Health.Schedule,
	})
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	if err := watcher.Start(); err != nil {
		return exitError(exitRuntime, "%v", err)
	}
	defer watcher.Stop()

	boardContext, _ := cmd.Flags().GetString("context")
	session, err := assistant.NewSession(assistant.Config{
		Generator:    client,
		Router:       reg,
		Logger:       logger,
		BoardContext: boardContext,
	})
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	fmt.Fprintf(out, "BoardPilot chat (model %s, %d tools). Type a question, or 'exit'.\n",
		client.Model(), len(reg.ListAvailable()))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		result := <-session.Ask(ctx, question)
		switch {
		case result.Err != nil:
			fmt.Fprintf(out, "error: %v\n", result.Err)
		case result.ToolUsed != "":
			fmt.Fprintf(out, "[used %s]\n%s\n", result.ToolUsed, result.Answer)
		default:
			fmt.Fprintln(out, result.Answer)
		}
	}
	return scanner.Err()
}
