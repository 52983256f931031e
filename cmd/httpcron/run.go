package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"httpcron/internal/app"
)

func newRunCmd() *cobra.Command {
	var (
		cfgPath         string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			reason := waitForStop(ctx, a.Done())
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return a.Stop(stopCtx, reason)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config (json or yaml)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "upper bound for graceful shutdown")
	return cmd
}

// waitForStop blocks until a signal cancels ctx or the app gives up on its
// own. A signal cancels the app as well, so ctx decides the reason.
func waitForStop(ctx context.Context, appDone <-chan struct{}) app.StopReason {
	select {
	case <-ctx.Done():
	case <-appDone:
	}
	if ctx.Err() != nil {
		return app.StopSignal
	}
	return app.StopFatalError
}
