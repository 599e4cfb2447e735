package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dbsmedya/gofresh/internal/adapter"
	"github.com/dbsmedya/gofresh/internal/backup"
	"github.com/dbsmedya/gofresh/internal/config"
	"github.com/spf13/cobra"
)

var (
	restoreInput  string
	restoreOutput string
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Decode a backup artifact back into a plain dump",
	Long: `Restore reverses the backup pipeline (decrypt, then decompress) and
writes the original dump bytes to a file. The artifact's processing
stages are recognized from its extension chain (.lz4, .enc), so a
restore needs nothing but the file and, if encrypted, the passphrase
from config.

Feeding the resulting dump back into the database is left to the
vendor's own tooling (psql, mysql, or copying the SQLite file).

Example:
  gofresh restore --input backup_20260828_120000.sql.lz4.enc --output restore.sql`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreInput, "input", "i", "",
		"Backup artifact to restore (required)")
	restoreCmd.MarkFlagRequired("input")

	restoreCmd.Flags().StringVarP(&restoreOutput, "output", "o", "",
		"Output file for the decoded dump (default: input minus .lz4/.enc)")

	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	// Restore only needs the config for vendor and passphrase; no
	// database connection is opened.
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	artifact := backup.DescribeArtifact(restoreInput, adapter.Kind(cfg.Database.Vendor))

	out := restoreOutput
	if out == "" {
		out = strings.TrimSuffix(strings.TrimSuffix(restoreInput, ".enc"), ".lz4")
		if out == restoreInput {
			return fmt.Errorf("artifact is not compressed or encrypted; use --output to pick a destination")
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := backup.Restore(artifact, cfg.Backup.Passphrase, f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored dump written to %s\n", out)
	return nil
}
