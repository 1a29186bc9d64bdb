package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"NewsRelay/internal/domain"
)

// RequeueOptions holds flags for the requeue command.
type RequeueOptions struct {
	*RootOptions
	Failed   bool
	Selected bool
}

// NewRequeueCommand creates the requeue command.
func NewRequeueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RequeueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "requeue [ids...]",
		Short: "Move selected or failed articles back to pending",
		Long: `Move articles back to pending so a later run can select them again.

Pass article ids, or --failed / --selected to requeue every article in that status.
Articles in any other status are rejected and nothing is changed.

Example:
  newsrelay requeue 12 14
  newsrelay requeue --failed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return requeue(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "requeue every failed article")
	cmd.Flags().BoolVar(&opts.Selected, "selected", false, "requeue every selected article")
	cmd.MarkFlagsMutuallyExclusive("failed", "selected")

	return cmd
}

func requeue(cmd *cobra.Command, opts *RequeueOptions, args []string) error {
	byStatus := opts.Failed || opts.Selected
	if byStatus == (len(args) > 0) {
		return NewExitError(ExitCommandError, "pass article ids or one of --failed/--selected")
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	application, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close(cmd.Context()) }()

	rt, err := application.Runtime(opts.Instance)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown instance", err)
	}

	if byStatus {
		status := domain.StatusFailed
		if opts.Selected {
			status = domain.StatusSelected
		}
		ids, err = rt.Store.RequeueStatus(cmd.Context(), rt.Config.Name, status)
	} else {
		err = rt.Store.Requeue(cmd.Context(), rt.Config.Name, ids)
	}
	if err != nil {
		return err
	}

	view := map[string]any{"instance": rt.Config.Name, "requeued": ids}
	return opts.output(cmd).Emit(view, func(w io.Writer) {
		fmt.Fprintf(w, "%s: requeued %d article(s)\n", rt.Config.Name, len(ids))
	})
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid article id %q", a))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
