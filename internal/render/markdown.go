package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	humanize "github.com/dustin/go-humanize"
)

// ColorsEnabled returns whether terminal colors should be used.
// It returns false if the NO_COLOR environment variable is set (any value)
// or if TERM is set to "dumb".
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// RenderMarkdown renders markdown text for terminal display.
// When colors are disabled, it returns the content unmodified.
func RenderMarkdown(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	if !ColorsEnabled() {
		return content, nil
	}

	rendered, err := glamour.RenderWithEnvironmentConfig(content)
	if err != nil {
		return content, err
	}

	return strings.TrimSpace(rendered), nil
}

// ExportSummary describes a finished export for RenderExportSummary.
type ExportSummary struct {
	Path      string
	Permanent string
	Temporary string
	Tables    int
	Rows      int
	Files     int
	Bytes     int64
}

// RenderExportSummary renders a short markdown report of an export.
func RenderExportSummary(s ExportSummary) string {
	var b strings.Builder
	b.WriteString("## Migration archive created\n\n")
	fmt.Fprintf(&b, "`%s`\n\n", s.Path)
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Tables | %s |\n", humanize.Comma(int64(s.Tables)))
	fmt.Fprintf(&b, "| Rows | %s |\n", humanize.Comma(int64(s.Rows)))
	fmt.Fprintf(&b, "| Files | %s |\n", humanize.Comma(int64(s.Files)))
	fmt.Fprintf(&b, "| Content | %s |\n", humanize.Bytes(uint64(s.Bytes)))
	fmt.Fprintf(&b, "\nURLs were rewritten from %s to %s.\n", s.Permanent, s.Temporary)

	out, err := RenderMarkdown(b.String())
	if err != nil {
		return b.String()
	}
	return out
}
