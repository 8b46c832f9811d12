package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), buf.String())
	return buf.String()
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "referrald", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)

	out := run(t, "--help")
	assert.Contains(t, out, "Available Commands:")
	for _, name := range []string{"serve", "process", "ingest", "export", "db"} {
		assert.Contains(t, out, name)
	}
}

func TestDBMigrateAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dbURL := "sqlite://" + filepath.Join(dir, "intake.db")

	out := run(t, "--db-url", dbURL, "--llm-provider", "none", "db", "migrate")
	assert.Contains(t, out, "schema up to date (sqlite3)")

	out = run(t, "--db-url", dbURL, "--llm-provider", "none", "db", "ping")
	assert.Contains(t, out, "ok")

	xlsx := filepath.Join(dir, "worklist.xlsx")
	run(t, "--db-url", dbURL, "--llm-provider", "none", "export", "--out", xlsx)

	b, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Review Queue")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
