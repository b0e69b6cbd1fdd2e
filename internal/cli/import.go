package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore a migration archive into the site",
	Long: `Load the archive's database snapshot into the site database and copy
its files into the site tree. Existing tables and files are overwritten.`,
	Example: `  jmigrate import --file site.zip
  jmigrate import --file site.zip --files content --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		file, _ := cmd.Flags().GetString("file")
		files, _ := cmd.Flags().GetString("files")
		yes, _ := cmd.Flags().GetBool("yes")

		if err := model.ValidateFileSync(model.FileSync(files)); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		if !yes && !w.JSONMode {
			confirmed := false
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Import %s into %s?", file, cfg.Root)).
						Description("The site database and files will be overwritten.").
						Affirmative("Import").
						Negative("Cancel").
						Value(&confirmed),
				),
			)
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					w.Info("Cancelled.")
					return nil
				}
				return cmdErr(fmt.Errorf("interactive form failed: %w (use --yes to skip the prompt)", err), output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
		}

		w.Info("Beginning import…")
		res, err := newSite(cfg).runImport(cmd.Context(), migrate.ImportRequest{
			Archive: file,
			Files:   model.FileSync(files),
		}, w.Engine(), w.Progress())
		if err != nil {
			return cmdErr(fmt.Errorf("import failed: %w", err), errorCode(err))
		}

		msg := fmt.Sprintf("Imported %s (%d statements, %d files)", res.Archive, res.Statements, res.Files)
		if res.Delegated {
			msg = fmt.Sprintf("Imported %s with the external tool", res.Archive)
		}
		w.Success(res, msg)
		return nil
	},
}

func init() {
	importCmd.Flags().StringP("file", "f", "", "Migration archive to import (required)")
	importCmd.Flags().String("files", string(model.FileSyncAll), "Files to copy: all, content or skip")
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
