package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/app"
	"github.com/dmitrijs2005/goalkeeper/internal/client/config"
	"github.com/spf13/cobra"
)

const pingTimeout = 3 * time.Second

// factory builds the App for one command invocation.
type factory struct {
	opts []app.Option
}

func (f factory) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return app.New(commandContext(cmd), cfg, f.opts...)
}

// with opens an App, runs fn and closes the App.
func (f factory) with(fn func(ctx context.Context, cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := f.open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(commandContext(cmd), cmd, a)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewRootCommand builds the command tree. opts are passed to every App the
// commands create.
func NewRootCommand(opts ...app.Option) *cobra.Command {
	f := factory{opts: opts}

	root := &cobra.Command{
		Use:           "goalkeeper",
		Short:         "Offline-first daily goal store with background sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newSaveCommand(f),
		newCurrentCommand(f),
		newHistoryCommand(f),
		newDirtyCommand(f),
		newSyncCommand(f),
		newReconcileCommand(f),
		newPurgeCommand(f),
		newRotateKeyCommand(f),
		newDeleteOwnerCommand(f),
		newLoginCommand(f),
		newLogoutCommand(f),
		newStatusCommand(f),
		newRunCommand(f),
	)
	return root
}
