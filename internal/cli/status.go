package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"NewsRelay/internal/domain"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show article counts and the rotation cursor",
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
			stats, err := rt.Store.Status(cmd.Context(), rt.Config.Name)
			if err != nil {
				return err
			}
			order, err := rt.Rotation.Peek(cmd.Context(), rt.Config.Name)
			if err != nil {
				return err
			}
			return rootOpts.output(cmd).Emit(newStatusView(stats, order), func(w io.Writer) { printStatus(w, stats, order) })
		},
	}
}

type statusView struct {
	Instance   string         `json:"instance"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
	NextIndex  int            `json:"next_index"`
	RunCount   int            `json:"run_count"`
	NextOrder  []string       `json:"next_order"`
}

func newStatusView(s domain.Stats, order []domain.Category) statusView {
	v := statusView{
		Instance:   s.Instance,
		Total:      s.Total,
		ByStatus:   make(map[string]int, len(s.ByStatus)),
		ByCategory: make(map[string]int, len(s.ByCategory)),
		NextIndex:  s.Rotation.NextIndex,
		RunCount:   s.Rotation.RunCount,
	}
	for k, n := range s.ByStatus {
		v.ByStatus[string(k)] = n
	}
	for k, n := range s.ByCategory {
		v.ByCategory[string(k)] = n
	}
	for _, c := range order {
		v.NextOrder = append(v.NextOrder, string(c))
	}
	return v
}

func printStatus(w io.Writer, s domain.Stats, order []domain.Category) {
	fmt.Fprintf(w, "%s: %d articles\n", s.Instance, s.Total)
	for _, st := range domain.Statuses {
		fmt.Fprintf(w, "  %-10s %d\n", st, s.ByStatus[st])
	}

	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	if len(cats) > 0 {
		fmt.Fprintln(w, "categories:")
	}
	for _, c := range cats {
		fmt.Fprintf(w, "  %-10s %d\n", c, s.ByCategory[domain.Category(c)])
	}

	fmt.Fprintf(w, "rotation: run %d, next index %d", s.Rotation.RunCount, s.Rotation.NextIndex)
	if len(order) > 0 {
		fmt.Fprintf(w, " (%s first)", order[0])
	}
	fmt.Fprintln(w)
}
