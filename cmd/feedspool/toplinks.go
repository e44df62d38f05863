// ABOUTME: Toplinks command: cross-feed report of frequently cited links
// ABOUTME: Scans the last 30 days of entries for links shared across feeds

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/feedspool/feedspool/internal/links"
)

const (
	toplinksWindowDays = 30
	toplinksScanLimit  = 5000
)

var toplinksCmd = &cobra.Command{
	Use:   "toplinks",
	Short: "Show links referenced by several feeds recently",
	Long: `Scan the entries published over the last 30 days and print every
outbound link referenced by at least 3 distinct feeds, most-cited
first. Links pointing back at their own feed's site are ignored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since := time.Now().UTC().AddDate(0, 0, -toplinksWindowDays).Format(time.RFC3339)
		rows, err := store.ListEntriesWithFeeds(since, toplinksScanLimit)
		if err != nil {
			return err
		}

		top := links.TopLinks(rows, links.DefaultThreshold)
		if len(top) == 0 {
			fmt.Println("No links shared by enough feeds in the last 30 days.")
			return nil
		}

		faint := color.New(color.Faint).SprintFunc()
		for _, l := range top {
			fmt.Printf("%3d  %s\n", l.FeedCount, l.URL)
			fmt.Printf("     %s\n", faint(strings.Join(l.FeedTitles, ", ")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toplinksCmd)
}
