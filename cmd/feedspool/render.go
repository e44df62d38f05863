// ABOUTME: Render command: prints the latest entries to stdout via a
// ABOUTME: small text template, optionally with full rendered content

package main

import (
	"fmt"
	"os"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/feedspool/feedspool/internal/content"
	"github.com/feedspool/feedspool/internal/models"
	"github.com/feedspool/feedspool/internal/timeutil"
)

const renderLimit = 250

var renderTemplate = template.Must(template.New("entry").Parse(
	"{{.Published}} - {{.FeedTitle}} - {{.Title}}\n  {{.Link}}\n"))

type renderLine struct {
	Published string
	FeedTitle string
	Title     string
	Link      string
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the latest entries as a plain-text report",
	RunE: func(cmd *cobra.Command, args []string) error {
		withContent, _ := cmd.Flags().GetBool("content")
		period, _ := cmd.Flags().GetString("since")

		since := ""
		if period != "" {
			since = timeutil.SinceString(period)
			if since == "" {
				return fmt.Errorf("unknown period %q (use today, yesterday, week, or month)", period)
			}
		}

		rows, err := store.ListEntriesWithFeeds(since, renderLimit)
		if err != nil {
			return err
		}

		for _, row := range rows {
			line := renderLine{
				Published: row.Entry.Published,
				FeedTitle: feedTitle(row.Feed),
				Title:     row.Entry.Title,
				Link:      row.Entry.Link,
			}
			if err := renderTemplate.Execute(os.Stdout, line); err != nil {
				return err
			}
			if withContent && row.Entry.Content != "" {
				os.Stdout.WriteString(content.RenderTerminal(row.Entry.Content))
				os.Stdout.WriteString("\n")
			}
		}
		return nil
	},
}

func feedTitle(feed *models.Feed) string {
	if feed == nil {
		return "(unknown feed)"
	}
	if feed.Title != "" {
		return feed.Title
	}
	return feed.URL
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().Bool("content", false, "render entry bodies as styled markdown")
	renderCmd.Flags().String("since", "", "limit to a period: today, yesterday, week, month")
}
