// ABOUTME: Check command: one-off diagnostic fetch of a single feed URL
// ABOUTME: Prints the parsed feed as JSON without touching the store

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedspool/feedspool/internal/discover"
	"github.com/feedspool/feedspool/internal/fetch"
	"github.com/feedspool/feedspool/internal/parse"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch and parse one URL without storing anything",
	Long: `Fetch one URL, parse it, and print the parsed feed as JSON.

With --discover, the URL may be an ordinary web page: the feed is
located via its alternate links or common feed paths first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")

		if useDiscovery, _ := cmd.Flags().GetBool("discover"); useDiscovery {
			found, err := discover.New(cfg.FetchRequestTimeout).Discover(cmd.Context(), url)
			if err != nil {
				fmt.Printf("discovery failed: %v\n", err)
				return nil
			}
			fmt.Printf("discovered feed: %s\n", found.URL)
			url = found.URL
		}

		result, err := fetch.Fetch(cmd.Context(), url, cfg.FetchRequestTimeout, nil)
		if err != nil {
			fmt.Printf("fetch failed: %v\n", err)
			return nil
		}
		if !result.OK() {
			fmt.Printf("unexpected response: status %d\n", result.Status)
			return nil
		}

		feed, err := parse.Parse([]byte(result.Body))
		if err != nil {
			fmt.Printf("parse failed: %v\n", err)
			return nil
		}

		out, err := json.MarshalIndent(feed, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode feed: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("url", "", "feed URL to check")
	checkCmd.Flags().Bool("discover", false, "locate the feed from a page URL first")
	_ = checkCmd.MarkFlagRequired("url")
}
