package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akindolabs/akindo/internal/adapter"
	"github.com/akindolabs/akindo/internal/agent"
	"github.com/akindolabs/akindo/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversation service",
	Long:  `Runs the agent behind the configured platform adapters (Slack, Telegram) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		comps, err := buildComponents(cfg)
		if err != nil {
			return err
		}

		handler := func(ctx context.Context, source, threadID, userID, text string) (string, error) {
			reply, err := comps.agent.Execute(ctx, text,
				agent.ExecContext{ThreadID: threadID, UserID: userID}, agent.Options{})
			if err != nil {
				return "", err
			}
			return reply.Text, nil
		}

		mgr, err := adapter.NewManager(cfg.Adapters, handler, adapter.ManagerOptions{
			RequireSlackSecrets: true,
		})
		if err != nil {
			return err
		}
		if len(mgr.InputAdapters()) == 0 {
			return fmt.Errorf("no input adapters enabled; enable slack or telegram, or use `akindo repl`")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mgr.Start(ctx)
		if comps.janitor != nil {
			comps.janitor.Start()
		}

		slog.Info("Akindo serving", "adapters", len(mgr.InputAdapters()))
		<-ctx.Done()
		slog.Info("Shutting down")

		shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
		if err != nil {
			shutdownTimeout, _ = config.DurationOrDefault("", config.DefaultServerShutdownTimeout)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if comps.janitor != nil {
			comps.janitor.Stop()
		}
		if err := mgr.Stop(shutdownCtx); err != nil {
			slog.Error("Adapter shutdown failed", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
