package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/referral-intake/internal/ocr"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run OCR and field extraction on one file and print the analysis as JSON",
	Long: `Run the recognition pipeline on a single local file without touching the
database. Useful for tuning OCR settings and prompts.

Examples:
  referrald process referral.pdf
  referrald process fax.bin --mime application/pdf --llm-provider none`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		declared, _ := cmd.Flags().GetString("mime")
		mt, err := ocr.ResolveMime(args[0], declared)
		if err != nil {
			return err
		}

		st, err := buildAnalysis(ctx, globalConfig, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.close(); err != nil {
				logger.Warn("engine close failed", "error", err)
			}
		}()

		res, err := st.analyzer.Analyze(ctx, args[0], mt)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", args[0], err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	processCmd.Flags().String("mime", "", "declared MIME type (sniffed when empty or generic)")
}
