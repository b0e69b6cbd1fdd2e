package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the site database and files into a migration archive",
	Long: `Dump the site database with every occurrence of the permanent URL
replaced by the temporary one, then pack it with the site tree into a
zip archive.`,
	Example: `  jmigrate export --permanent https://example.com --temporary http://localhost:8080
  jmigrate export --permanent https://example.com --temporary https://staging.example.com --output site.zip`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		permanent, _ := cmd.Flags().GetString("permanent")
		temporary, _ := cmd.Flags().GetString("temporary")
		out, _ := cmd.Flags().GetString("output")

		w.Info("Beginning export…")
		res, err := newSite(cfg).runExport(cmd.Context(), migrate.ExportRequest{
			Permanent: permanent,
			Temporary: temporary,
			Output:    out,
		}, w.Engine(), w.Progress())
		if err != nil {
			return cmdErr(fmt.Errorf("export failed: %w", err), errorCode(err))
		}

		w.Success(res, render.RenderExportSummary(render.ExportSummary{
			Path:      res.Path,
			Permanent: permanent,
			Temporary: temporary,
			Tables:    res.Tables,
			Rows:      res.Rows,
			Files:     res.Files,
			Bytes:     res.Bytes,
		}))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("permanent", "", "URL the site is served from today (required)")
	exportCmd.Flags().String("temporary", "", "URL the archive will be imported under (required)")
	exportCmd.Flags().StringP("output", "o", "", "Archive path (default: timestamped file in the archive directory)")
	exportCmd.MarkFlagRequired("permanent")
	exportCmd.MarkFlagRequired("temporary")
	rootCmd.AddCommand(exportCmd)
}
