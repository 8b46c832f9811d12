package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/referral-intake/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Enqueue files or directories and wait for processing to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		uploader, _ := cmd.Flags().GetString("uploader")
		if uploader == "" {
			uploader = globalConfig.Ingest.UploaderID
		}

		a, err := newApp(ctx, globalConfig, logger)
		if err != nil {
			return err
		}
		defer a.Close(globalConfig.Queue.ProcessTimeout + time.Minute)

		ing := ingest.NewIngestor(a.intake, uploader, logger)
		var total ingest.DirStats
		for _, p := range args {
			info, err := os.Stat(p)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				r, err := ing.IngestPath(ctx, p)
				total.Matched++
				switch {
				case err != nil:
					total.Failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", p, err)
				case r.Duplicate:
					total.Duplicates++
				default:
					total.Enqueued++
				}
				continue
			}
			_, st, err := ing.IngestDirectory(ctx, p, true)
			if err != nil {
				return err
			}
			total.Matched += st.Matched
			total.Enqueued += st.Enqueued
			total.Duplicates += st.Duplicates
			total.Failed += st.Failed
		}

		fmt.Fprintf(cmd.OutOrStdout(), "matched=%d enqueued=%d duplicates=%d failed=%d\n",
			total.Matched, total.Enqueued, total.Duplicates, total.Failed)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("uploader", "", "uploader id recorded on the scans (default ingest.uploader_id)")
}
