package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/referral-intake/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the review worklist to an XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, db, err := openReadOnly(ctx, globalConfig, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		b, err := export.NewService(svc, logger).ReviewWorklistXLSX(ctx, limit)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(b))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "review-worklist.xlsx", "output file")
	exportCmd.Flags().Int("limit", 0, "maximum number of results (0 = all)")
}
