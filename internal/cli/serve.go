package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every instance on its daily schedule",
		Long: `Run every configured instance on the scheduler times, in each instance's
timezone, until interrupted. Instances run concurrently; runs of one instance never
overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close(context.Background()) }()

			return application.Serve(ctx)
		},
	}
}
