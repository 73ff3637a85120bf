package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/app"
	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/spf13/cobra"
)

func newSaveCommand(f factory) *cobra.Command {
	var (
		owner        string
		values       models.GoalValues
		source       string
		calculatedAt string
		id           string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a calculated goal set and schedule it for sync",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			var at time.Time
			if calculatedAt != "" {
				t, err := time.Parse(time.RFC3339, calculatedAt)
				if err != nil {
					return fmt.Errorf("%w: calculated-at: %v", common.ErrValidation, err)
				}
				at = t
			}

			r := a.NewRecord(owner, values, models.CalculationSource(source), at)
			if id != "" {
				r.ID = id
			}

			saved, err := a.Save(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (revision %d)\n", saved.ID, saved.Revision)
			return nil
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	cmd.Flags().IntVar(&values.Steps, "steps", 0, "daily steps goal")
	cmd.Flags().IntVar(&values.Calories, "calories", 0, "daily calories goal")
	cmd.Flags().IntVar(&values.HeartPoints, "heart-points", 0, "daily heart points goal")
	cmd.Flags().StringVar(&source, "source", string(models.SourceManual), "calculation source: default, personalized, manual, fallback")
	cmd.Flags().StringVar(&calculatedAt, "calculated-at", "", "calculation time (RFC3339), now if empty")
	cmd.Flags().StringVar(&id, "id", "", "record id to overwrite, a new one if empty")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func newCurrentCommand(f factory) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the owner's current goals",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			r, err := a.Store().GetCurrent(ctx, owner)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no goals for %s\n", owner)
				return nil
			}
			printRecord(cmd.OutOrStdout(), *r)
			return nil
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newHistoryCommand(f factory) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the owner's goal sets, newest first",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			rs, err := a.Store().GetHistory(ctx, owner)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), rs)
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newDirtyCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "dirty",
		Short: "List records not yet acknowledged by the remote store",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			rs, err := a.Store().GetDirty(ctx)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), rs)
		}),
	}
}
