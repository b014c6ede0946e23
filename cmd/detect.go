package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDetectCmd creates the 'detect' subcommand, a one-off scan of all
// stored books for content changes.
func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Scan stored books for content changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Detector.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run change scan: %w", err)
			}
			return nil
		},
	}
}
