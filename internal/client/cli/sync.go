package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/app"
	"github.com/spf13/cobra"
)

func newSyncCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push every dirty record now",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			res, err := a.SyncNow(ctx)
			if err != nil {
				return err
			}
			printBatchResult(cmd.OutOrStdout(), res)
			return nil
		}),
	}
}

func newReconcileCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and push the dirty records",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			rep, err := a.Worker().RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "requeued: %d, purged: %d, rotated: %t, rewrapped: %d\n",
				rep.Requeued, rep.Purged, rep.Rotated, rep.Rewrapped)
			if err != nil {
				return err
			}

			res, err := a.SyncNow(ctx)
			if err != nil {
				return err
			}
			printBatchResult(cmd.OutOrStdout(), res)
			return nil
		}),
	}
}

func newPurgeCommand(f factory) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete clean history older than the retention period",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if olderThan <= 0 {
				olderThan = a.Config().Retention
			}
			cutoff := a.Now().Add(-olderThan)
			n, err := a.Store().PurgeOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d records calculated before %s\n", n, formatTime(cutoff))
			return nil
		}),
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age limit, the configured retention if zero")
	return cmd
}

func newRotateKeyCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotate the encryption key and re-encrypt stored records",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			res, err := a.Crypto().RotateKey(ctx)
			if err != nil {
				return err
			}
			n, err := a.Store().Rewrap(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key v%d active (was v%d), retired %v, re-encrypted %d records\n",
				res.ActiveVersion, res.PreviousVersion, res.Retired, n)
			return nil
		}),
	}
}

func newDeleteOwnerCommand(f factory) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "delete-owner",
		Short: "Delete every local record of an owner",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			n, err := a.Store().DeleteForOwner(ctx, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records of %s\n", n, owner)
			return nil
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
