package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wechat_ai_editor/config"
	"wechat_ai_editor/generator"
	"wechat_ai_editor/history"
)

var (
	cfgFile string
	verbose bool

	// out receives command output; tests swap it.
	out io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "wechat-editor",
	Short: "AI formatter for WeChat Official Account articles",
	Long: `wechat-editor rewrites raw text, images and imported documents into
styled WeChat article HTML through a generative model, and keeps the
last 20 drafts in a local history.

Run "wechat-editor serve" for the HTTP API, or "wechat-editor format"
for a one-shot run from the terminal.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "path to config file (json, toml or yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openHistory opens the configured history backend. The returned func
// releases it.
func openHistory(ctx context.Context, cfg config.Config, logger *slog.Logger) (*history.Store, func() error, error) {
	switch cfg.History.Backend {
	case "", "file":
		backend, err := history.NewFileBackend(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history dir: %w", err)
		}
		return history.Open(backend, logger), func() error { return nil }, nil
	case "sqlite":
		path := cfg.History.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "history.db")
		}
		backend, err := history.NewSQLiteBackend(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history db: %w", err)
		}
		return history.Open(backend, logger), backend.Close, nil
	default:
		return nil, nil, fmt.Errorf("history backend %s not supported", cfg.History.Backend)
	}
}

func newSession(cfg config.Config, hist *history.Store, logger *slog.Logger) (*generator.Session, error) {
	llm, err := generator.NewLLM(&generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, logger)
	if err != nil {
		return nil, err
	}
	return generator.NewSession(agent, hist,
		generator.WithTimeout(cfg.LLM.Timeout),
		generator.WithLogger(logger),
	), nil
}
