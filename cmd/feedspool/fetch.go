// ABOUTME: Fetch command: batch-polls every URL from the feed list file
// ABOUTME: with bounded concurrency and colored per-feed progress output

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/feedspool/feedspool/internal/poll"
	"github.com/feedspool/feedspool/internal/scheduler"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Poll every feed in the URL list",
	Long: `Poll each URL from the feed list file, at most once per run.

Polls use HTTP caching headers (ETag, Last-Modified) replayed from the
most recent successful fetch, and feeds fetched within the minimum
fetch period are skipped. Individual feed failures are reported and
recorded but do not fail the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := scheduler.URLsFromFile(cfg.FetchFeedsFilename)
		if err != nil {
			return fmt.Errorf("failed to read feed list: %w", err)
		}
		if len(urls) == 0 {
			fmt.Printf("No feed URLs in %s\n", cfg.FetchFeedsFilename)
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		sched := scheduler.New(poll.New(store, logger), logger, cfg.FetchConcurrencyLimit)
		sched.OnResult = func(r scheduler.Result) {
			switch {
			case r.Err != nil:
				fmt.Printf("%s %s: %v\n", red("x"), r.URL, r.Err)
			case r.Outcome.Kind == poll.Skipped:
				fmt.Printf("%s %s skipped (recently fetched)\n", faint("-"), r.URL)
			case r.Outcome.Kind == poll.NotModified:
				fmt.Printf("%s %s not modified\n", faint("-"), r.URL)
			default:
				fmt.Printf("%s %s updated (%d entries)\n", green("v"), r.URL, len(r.Outcome.Feed.Entries))
			}
		}

		summary, err := sched.Run(cmd.Context(), urls, scheduler.Params{
			RequestTimeout:  cfg.FetchRequestTimeout,
			MinFetchPeriod:  cfg.FetchMinFetchPeriod,
			RetainSrc:       cfg.FetchRetainSrc,
			SkipEntryUpdate: cfg.FetchSkipEntryUpdate,
			MarkDefunct:     cfg.FetchMarkDefunct,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("Summary: %d feed(s) polled\n", summary.Total())
		if summary.Updated > 0 {
			fmt.Printf("  %s %d updated\n", green("v"), summary.Updated)
		}
		if summary.NotModified > 0 {
			fmt.Printf("  %s %d not modified\n", faint("-"), summary.NotModified)
		}
		if summary.Skipped > 0 {
			fmt.Printf("  %s %d skipped\n", faint("-"), summary.Skipped)
		}
		if summary.Failed > 0 {
			fmt.Printf("  %s %d errors\n", red("x"), summary.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().String("feeds", "", "path to the feed URL list file")
}
