package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/config"
	"github.com/ALT-F4-LLC/jmigrate/internal/db"
	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/output"
	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

type configInfo struct {
	*config.Config
	DBFound       bool   `json:"db_found"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	DSNSet        bool   `json:"dsn_set"`
	Delegate      string `json:"delegate,omitempty"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display jmigrate configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{Config: cfg, DSNSet: cfg.DSN != ""}
		if cfg.DelegateThreshold > 0 {
			info.Delegate = migrate.LocateDelegate(cfg.DelegateCandidates())
		}

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking job database: %w", err), output.ErrGeneral)
		}
		if !exists {
			w.Warn("No job database found. Run 'jmigrate init' to create one.")
			w.Success(info, formatConfigHuman(info))
			return nil
		}

		conn, err := db.Open(cfg.DBPath)
		if err != nil {
			return cmdErr(err, output.ErrDatabase)
		}
		defer conn.Close()

		if info.SchemaVersion, err = db.SchemaVersion(conn); err != nil {
			return cmdErr(err, output.ErrDatabase)
		}
		stat, err := os.Stat(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("reading database file: %w", err), output.ErrGeneral)
		}
		info.DBFound = true
		info.DBSizeBytes = stat.Size()

		w.Success(info, formatConfigHuman(info))
		return nil
	},
}

func formatEnvValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

// configRows returns the label/value pairs shown by "jmigrate config".
func configRows(info configInfo) [][2]string {
	dbPath := info.DBPath
	if !info.DBFound {
		dbPath += " (not found)"
	}
	rows := [][2]string{{"Database path", dbPath}}
	if info.DBFound {
		rows = append(rows,
			[2]string{"Database size", humanize.Bytes(uint64(info.DBSizeBytes))},
			[2]string{"Schema version", fmt.Sprintf("%d", info.SchemaVersion)})
	}
	dsn := "(not set)"
	if info.DSNSet {
		dsn = "configured"
	}
	threshold := "never"
	if info.DelegateThreshold > 0 {
		threshold = humanize.Bytes(uint64(info.DelegateThreshold))
	}
	rows = append(rows,
		[2]string{"Config file", formatEnvValue(info.ConfigFile)},
		[2]string{"Site root", info.Root},
		[2]string{"Archive dir", info.ArchiveDir},
		[2]string{"Site database", dsn},
		[2]string{"Table prefix", info.TablePrefix},
		[2]string{"Read size", humanize.IBytes(uint64(info.ReadSize))},
		[2]string{"Delegate above", threshold},
		[2]string{"Listen", info.Listen},
		[2]string{"JMIGRATE_PATH", formatEnvValue(os.Getenv("JMIGRATE_PATH"))},
	)
	if info.Delegate != "" {
		rows = append(rows, [2]string{"Delegate", info.Delegate})
	}
	return rows
}

func formatConfigHuman(info configInfo) string {
	rows := configRows(info)
	if !render.ColorsEnabled() {
		var b strings.Builder
		for i, r := range rows {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%-16s %s", r[0]+":", r[1])
		}
		return b.String()
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	indicator := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
	if !info.DBFound {
		indicator = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("●")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("jmigrate Configuration") + "\n\n")
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		label := keyStyle.Render(fmt.Sprintf("%-16s", r[0]+":"))
		if i == 0 {
			fmt.Fprintf(&b, "  %s %s %s", label, indicator, valStyle.Render(r[1]))
			continue
		}
		fmt.Fprintf(&b, "  %s %s", label, valStyle.Render(r[1]))
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
