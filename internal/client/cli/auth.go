package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/goalkeeper/internal/client/app"
	"github.com/spf13/cobra"
)

func newLoginCommand(f factory) *cobra.Command {
	var owner, token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the access token used to sync an owner's records",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if token == "" {
				var err error
				token, err = GetSecret("Access token", cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			if err := a.Sessions().Login(ctx, owner, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", owner)
			return nil
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	cmd.Flags().StringVar(&token, "token", "", "access token, read from the terminal if empty")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newLogoutCommand(f factory) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget an owner's access token",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			if err := a.Sessions().Logout(ctx, owner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged out %s\n", owner)
			return nil
		}),
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newStatusCommand(f factory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sessions, pending records, key state and remote reachability",
		RunE: f.with(func(ctx context.Context, cmd *cobra.Command, a *app.App) error {
			w := cmd.OutOrStdout()

			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			_ = a.Ping(pingCtx)
			cancel()
			fmt.Fprintf(w, "remote:     %s (%s)\n", a.Mode(), a.Config().RemoteKind)

			dirty, err := a.Store().GetDirty(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "dirty:      %d\n", len(dirty))
			fmt.Fprintf(w, "key:        v%d (rotation due: %t)\n", a.Crypto().ActiveVersion(), a.Crypto().IsRotationDue())

			sessions, err := a.Sessions().List(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(w, "sessions:   none")
				return nil
			}
			fmt.Fprintln(w, "sessions:")
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, s := range sessions {
				state := "valid"
				if s.Expired {
					state = "expired"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.OwnerID, formatTime(s.ExpiresAt), state)
			}
			return tw.Flush()
		}),
	}
}
