package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRotationCommand groups the rotation cursor commands.
func NewRotationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotation",
		Short: "Manage the category rotation cursor",
	}
	cmd.AddCommand(newRotationResetCommand(rootOpts))
	return cmd
}

func newRotationResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Put the cursor back on the first category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close(cmd.Context()) }()

			rt, err := application.Runtime(rootOpts.Instance)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown instance", err)
			}
			if err := rt.Rotation.Reset(cmd.Context(), rt.Config.Name); err != nil {
				return err
			}
			first := ""
			if cats := rt.Rotation.Categories(); len(cats) > 0 {
				first = string(cats[0])
			}
			view := map[string]string{"instance": rt.Config.Name, "next": first}
			return rootOpts.output(cmd).Emit(view, func(w io.Writer) {
				fmt.Fprintf(w, "%s: rotation reset, next run starts with %s\n", rt.Config.Name, first)
			})
		},
	}
}
