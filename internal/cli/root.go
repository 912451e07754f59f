// Package cli implements the cips CLI commands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/cips/internal/config"
	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/pathenc"
	"github.com/rcliao/cips/internal/store"
)

var (
	dbPath      string
	projectPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "cips",
	Short: "Session lineage and branching for AI coding sessions",
	Long: "Tracks concurrent assistant sessions per project, serializes their state\n" +
		"into an immutable lineage, and merges branches back together. SQLite-backed,\n" +
		"single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $CIPS_DB or ~/.cips/cips.db)")
	RootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "Project path (default: current directory)")
}

func loadConfig() *config.Config {
	return config.Load()
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(loadConfig().DBPath(dbPath))
}

// currentNS encodes the project path into its storage namespace.
func currentNS() string {
	p := projectPath
	if p == "" {
		p, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return pathenc.Encode(p)
}

// exitErr prints a one-line diagnostic and exits non-zero. Exit codes
// distinguish failure classes so callers can retry, disambiguate, or
// give up: 2 not found, 3 ambiguous, 4 cycle, 1 everything else.
func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	switch {
	case errors.Is(err, model.ErrNotFound):
		os.Exit(2)
	case errors.Is(err, model.ErrAmbiguous):
		os.Exit(3)
	case errors.Is(err, model.ErrCycle):
		os.Exit(4)
	default:
		os.Exit(1)
	}
}
