package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCrawlCmd creates the 'crawl' subcommand. It runs one crawl to
// completion, resuming from a stored checkpoint if the previous run
// was interrupted.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one catalog crawl",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Orchestrator.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run crawl: %w", err)
			}
			return nil
		},
	}
}
