package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/craftauth/yggdrasil/internal/app"
	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/tools/smoke"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "yggdrasil",
		Short: "Authentication and session server for game launchers",
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before configuration")
	cmd.AddCommand(newServeCommand(&envFile))
	cmd.AddCommand(smoke.NewCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(*envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			config.RecordValidationEvent(cmd.Context(), os.Getenv("OTEL_ENVIRONMENT"), outcome, err)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runtime, err := observability.InitRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := runtime.Shutdown(shutdownCtx); err != nil {
					fmt.Fprintln(os.Stderr, "observability shutdown:", err)
				}
			}()

			a, err := app.New(ctx, cfg, runtime)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version)
		},
	}
}
