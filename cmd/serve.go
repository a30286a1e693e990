package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wechat_ai_editor/config"
	"wechat_ai_editor/publisher"
	"wechat_ai_editor/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editor HTTP API",
	Long: `Start the editor HTTP API on server_addr (or --addr).

Examples:
  wechat-editor serve
  wechat-editor serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "http listen address (overrides config server_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hist, closeHist, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHist()

	session, err := newSession(cfg, hist, logger)
	if err != nil {
		return err
	}

	var factory server.PublisherFactory
	if cfg.HasWeChat() {
		pubCfg := publisher.Config{AppID: cfg.AppID, AppSecret: cfg.AppSecret}
		factory = func(ctx context.Context) (*publisher.Publisher, error) {
			return publisher.New(ctx, pubCfg, nil, logger)
		}
	}

	srv, err := server.New(session, factory, logger)
	if err != nil {
		return err
	}

	listen := cfg.ServerAddr
	if serveAddr != "" {
		listen = serveAddr
	}
	if listen == "" {
		listen = ":8080"
	}

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting web server", "addr", listen, "provider", cfg.LLM.Provider, "history", cfg.History.Backend)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
