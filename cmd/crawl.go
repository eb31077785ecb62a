package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand: run the full pipeline
// for one or more product URLs and print the records.
func newCrawlCmd() *cobra.Command {
	var (
		force      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl one or more product URLs",
		Long: `Runs each URL through the acquisition pipeline: normalization,
cached fetch, dimension extraction, categorization and validation.
URLs crawled within the cache TTL are served from the cache unless
--force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			results := instance.Orchestrator.CrawlAll(cmd.Context(), args, force)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return fmt.Errorf("encode results: %w", err)
				}
			} else {
				printResults(cmd, results)
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			if failed == len(results) {
				return fmt.Errorf("all %d urls failed", failed)
			}
			if failed > 0 {
				instance.Logger.Warn("some urls failed", zap.Int("failed", failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the cache and re-crawl")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print records as JSON")
	return cmd
}
