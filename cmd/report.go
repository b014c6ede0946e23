package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/geoffreykithuku/books-crawler/internal/report"
)

// newReportCmd creates the 'report' subcommand, which prints the daily
// change report to stdout.
func newReportCmd() *cobra.Command {
	var (
		date   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a daily change report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			day := time.Now().UTC()
			if date != "" {
				day, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date, expected YYYY-MM-DD: %w", err)
				}
			}

			out, err := appInstance.Reports.Generate(cmd.Context(), day, format)
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
			cmd.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC day to report on (default today)")
	cmd.Flags().StringVar(&format, "format", report.FormatJSON, "output format: json or csv")
	return cmd
}
