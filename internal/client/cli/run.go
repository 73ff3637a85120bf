package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/goalkeeper/internal/client/app"
	"github.com/spf13/cobra"
)

// notifyContext is a test seam for signal.NotifyContext.
var notifyContext = signal.NotifyContext

func newRunCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep synchronizing in the background until interrupted",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if err := a.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "synchronizing, press Ctrl+C to stop")

			sigCtx, stop := notifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-sigCtx.Done()

			flushCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := a.Flush(flushCtx); err != nil {
				a.Logger().Warn(flushCtx, "final flush failed", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		}),
	}
}
