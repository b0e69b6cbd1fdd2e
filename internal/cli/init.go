package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/jmigrate/internal/db"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"

	"github.com/spf13/cobra"
)

type initResult struct {
	Path          string `json:"path"`
	DBPath        string `json:"db_path"`
	SchemaVersion int    `json:"schema_version"`
	Created       bool   `json:"created"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the job database",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking job database: %w", err), output.ErrGeneral)
		}

		if exists {
			w.Warn("Database already exists at %s", cfg.DBPath)
		} else if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			return cmdErr(fmt.Errorf("creating directory: %w", err), output.ErrIO)
		}

		conn, err := db.OpenStore(cfg.DBPath)
		if err != nil {
			return cmdErr(err, output.ErrDatabase)
		}
		defer conn.Close()

		schemaVersion, err := db.SchemaVersion(conn)
		if err != nil {
			return cmdErr(err, output.ErrDatabase)
		}

		res := initResult{
			Path:          cfg.StateDir,
			DBPath:        cfg.DBPath,
			SchemaVersion: schemaVersion,
			Created:       !exists,
		}
		if exists {
			w.Success(res, render.StyledText("Database already initialized", lipgloss.NewStyle().Foreground(lipgloss.Color("3"))))
			return nil
		}

		w.Success(res, render.StyledText("Initialized job database", lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))))
		w.Info("Database created at %s", cfg.DBPath)
		w.Info("Consider adding .jmigrate/ to your .gitignore")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
