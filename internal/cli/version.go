package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// formatVersion renders the version line. short prints the bare version
// for scripts that compare releases.
func formatVersion(v versionInfo, short bool) string {
	if short {
		return v.Version
	}
	bold := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	return fmt.Sprintf("jmigrate %s %s",
		render.StyledText(v.Version, bold),
		render.StyledText(fmt.Sprintf("(commit %s, built %s, %s %s)", v.Commit, v.BuildDate, v.Go, v.Platform), dim),
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the jmigrate build and runtime",
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		v := currentVersion()
		getWriter(cmd).Success(v, formatVersion(v, short))
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}
