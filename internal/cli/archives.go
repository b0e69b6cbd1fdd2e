package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Manage archives in the archive directory",
}

type archivesListResult struct {
	Dir      string         `json:"dir"`
	Archives []archive.Info `json:"archives"`
}

var archivesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List migration archives",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		infos, err := archive.List(afero.NewOsFs(), cfg.ArchiveDir)
		if err != nil {
			return cmdErr(err, output.ErrIO)
		}
		w.Success(archivesListResult{Dir: cfg.ArchiveDir, Archives: infos}, render.RenderArchivesTable(infos))
		return nil
	},
}

var archivesDeleteCmd = &cobra.Command{
	Use:   "delete <file>",
	Short: "Delete an archive from the archive directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		if err := archive.Remove(afero.NewOsFs(), cfg.ArchiveDir, args[0]); err != nil {
			switch {
			case errors.Is(err, os.ErrNotExist):
				return cmdErr(errors.New("Archive could not be found on the server."), output.ErrNotFound)
			case errors.Is(err, archive.ErrOutsideDir):
				return cmdErr(err, output.ErrValidation)
			}
			w.Warn("Failed to delete archive file.")
			return cmdErr(err, output.ErrIO)
		}
		w.Success(struct {
			File string `json:"file"`
		}{File: args[0]}, fmt.Sprintf("Archive file deleted successfully: %s", args[0]))
		return nil
	},
}

func init() {
	archivesCmd.AddCommand(archivesListCmd, archivesDeleteCmd)
	rootCmd.AddCommand(archivesCmd)
}
