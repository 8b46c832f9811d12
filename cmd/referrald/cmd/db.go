package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/referral-intake/internal/server"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := server.ConnectDB(cmd.Context(), globalConfig.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", db.Dialect())
		return nil
	},
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := server.ConnectDB(cmd.Context(), globalConfig.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := server.PingDB(cmd.Context(), db, logger, 3*time.Second); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd, dbPingCmd)
}
