package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"NewsRelay/internal/usecase"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Live      bool
	Limit     int
	KeepNoise bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Fetch, classify, deduplicate and select articles for one instance.

Without --live the run is a dry run: nothing is stored, the rotation cursor is not
advanced, no approval is requested and nothing is posted.

Example:
  newsrelay run --instance main
  newsrelay run --live --limit 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Live, "live", false, "store, ask for approval and post")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "articles to select (default from config)")
	cmd.Flags().BoolVar(&opts.KeepNoise, "keep-noise", false, "store and consider NOISE articles")

	return cmd
}

func runOnce(cmd *cobra.Command, opts *RunOptions) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	application, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close(cmd.Context()) }()

	report, err := application.Run(cmd.Context(), opts.Instance, usecase.RunOptions{
		Live:      opts.Live,
		Limit:     opts.Limit,
		KeepNoise: opts.KeepNoise,
	})
	if outErr := opts.output(cmd).Emit(newRunView(report), func(w io.Writer) { printRun(w, report) }); outErr != nil {
		return outErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}
	return nil
}

type selectedView struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
}

type runView struct {
	Instance      string         `json:"instance"`
	DryRun        bool           `json:"dry_run"`
	Fetched       int            `json:"fetched"`
	Noise         int            `json:"noise"`
	Duplicates    int            `json:"duplicates"`
	Inserted      int            `json:"inserted"`
	Order         []string       `json:"order"`
	Selected      []selectedView `json:"selected"`
	Approved      []int64        `json:"approved,omitempty"`
	Skipped       []int64        `json:"skipped,omitempty"`
	Published     []int64        `json:"published,omitempty"`
	Failed        []int64        `json:"failed,omitempty"`
	BlogDrafted   int            `json:"blog_drafted,omitempty"`
	BlogPublished []string       `json:"blog_published,omitempty"`
}

func newRunView(r usecase.RunReport) runView {
	v := runView{
		Instance:      r.Instance,
		DryRun:        r.DryRun,
		Fetched:       r.Fetched,
		Noise:         r.Noise,
		Duplicates:    r.Duplicates,
		Inserted:      r.Inserted,
		Approved:      r.Approved,
		Skipped:       r.Skipped,
		Published:     r.Published,
		Failed:        r.Failed,
		BlogDrafted:   r.Blog.Drafted,
		BlogPublished: r.Blog.Published,
	}
	for _, c := range r.Order {
		v.Order = append(v.Order, string(c))
	}
	for _, a := range r.Selected {
		v.Selected = append(v.Selected, selectedView{ID: a.ID, Category: string(a.Category), Score: a.Score, Title: a.Title, URL: a.URL})
	}
	return v
}

func printRun(w io.Writer, r usecase.RunReport) {
	mode := "live"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s (%s)\n", r.Instance, mode)
	fmt.Fprintf(w, "  fetched %d, inserted %d, duplicates %d, noise %d\n", r.Fetched, r.Inserted, r.Duplicates, r.Noise)

	order := make([]string, len(r.Order))
	for i, c := range r.Order {
		order[i] = string(c)
	}
	fmt.Fprintf(w, "  rotation: %s\n", strings.Join(order, " > "))

	if len(r.Selected) == 0 {
		fmt.Fprintln(w, "  nothing selected")
	}
	for _, a := range r.Selected {
		fmt.Fprintf(w, "  [%d] %-10s %6.2f  %s\n", a.ID, a.Category, a.Score, a.Title)
	}
	if !r.DryRun {
		fmt.Fprintf(w, "  approved %d, skipped %d, published %d, failed %d\n",
			len(r.Approved), len(r.Skipped), len(r.Published), len(r.Failed))
	}
	if r.Blog.Drafted > 0 {
		fmt.Fprintf(w, "  blog: drafted %d, published %d\n", r.Blog.Drafted, len(r.Blog.Published))
	}
}
