// ABOUTME: Serve command: runs the GraphQL HTTP server
// ABOUTME: Exposes /graphql, /graphiql, and the static site directory

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedspool/feedspool/internal/gql"
	"github.com/feedspool/feedspool/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored feeds over GraphQL",
	Long: `Run the HTTP server: POST or GET /graphql for queries, /graphiql
for the interactive explorer, and static files from the configured
directory for every other path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := gql.NewSchema(store)
		if err != nil {
			return fmt.Errorf("failed to build schema: %w", err)
		}
		srv := server.New(cfg.HTTPServerAddress, schema, cfg.HTTPServerStaticPath, logger)
		if err := srv.ListenAndServe(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
