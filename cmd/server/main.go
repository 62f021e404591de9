package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"discussion-room/internal/bootstrap"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "discussion-room",
	Short:         "Real-time discussion rooms with AI generated agendas",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket server and the room sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap.LoadConfig(envFile)
		if err != nil {
			return err
		}
		app, err := bootstrap.NewApp(cfg)
		if err != nil {
			return err
		}
		errCh, err := app.Start()
		if err != nil {
			app.Shutdown()
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		select {
		case <-ctx.Done():
			logrus.Info("Shutdown signal received...")
		case err = <-errCh:
			logrus.WithError(err).Error("HTTP server failed")
		}
		app.Shutdown()
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file (defaults to ./.env when present)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Fatalf("discussion-room: %v", err)
	}
}
