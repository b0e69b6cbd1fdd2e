package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/jmigrate/internal/archive"
	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

const maxArchiveWidth = 48

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// ColorFromName maps model color name strings to lipgloss colors.
func ColorFromName(name string) lipgloss.Color {
	switch name {
	case "red":
		return lipgloss.Color("9")
	case "yellow":
		return lipgloss.Color("11")
	case "blue":
		return lipgloss.Color("12")
	case "green":
		return lipgloss.Color("10")
	case "gray":
		return lipgloss.Color("8")
	default:
		return lipgloss.Color("15")
	}
}

// truncate shortens a string to maxLen runes, keeping its tail.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[len(runes)-maxLen:])
	}
	return "..." + string(runes[len(runes)-maxLen+3:])
}

// statusLabel returns a status string with icon, e.g. "✓ success".
func statusLabel(s model.Status) string {
	return s.Icon() + " " + string(s)
}

// shortID returns the first block of a job id.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// RenderJobsTable renders a list of jobs as a formatted table.
func RenderJobsTable(jobs []model.Job) string {
	if len(jobs) == 0 {
		return EmptyState("No jobs found.", "Queue one with: jmigrate jobs create --file <archive>", false)
	}

	if !ColorsEnabled() {
		return renderPlainJobs(jobs)
	}

	headers := []string{"ID", "Kind", "Status", "Progress", "Archive", "Updated"}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, jobToRow(j))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(jobs) {
				return s
			}

			switch col {
			case 0: // ID
				return s.Foreground(lipgloss.Color("15"))
			case 2: // Status
				return s.Foreground(ColorFromName(jobs[row].Status.Color()))
			case 4: // Archive
				return s.Bold(true)
			default:
				return s
			}
		})

	return t.Render()
}

func jobToRow(j model.Job) []string {
	target := j.Archive
	if j.Kind == model.JobKindExport {
		target = j.Output
	}
	return []string{
		shortID(j.ID),
		string(j.Kind),
		statusLabel(j.Status),
		fmt.Sprintf("%d%%", j.Progress),
		truncate(target, maxArchiveWidth),
		humanize.Time(j.UpdatedAt),
	}
}

func renderPlainJobs(jobs []model.Job) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-10s %-8s %-11s %-9s %-48s %s\n",
		"ID", "Kind", "Status", "Progress", "Archive", "Updated")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 100))

	for _, j := range jobs {
		r := jobToRow(j)
		fmt.Fprintf(&b, "%-10s %-8s %-11s %-9s %-48s %s\n", r[0], r[1], r[2], r[3], r[4], r[5])
	}

	return b.String()
}

// RenderArchivesTable renders the archive directory listing.
func RenderArchivesTable(infos []archive.Info) string {
	if len(infos) == 0 {
		return EmptyState("No migration archives found.", "Create one with: jmigrate export --permanent <url> --temporary <url>", false)
	}

	rows := make([][]string, 0, len(infos))
	for _, in := range infos {
		rows = append(rows, []string{in.Name, humanize.Bytes(uint64(in.Size)), humanize.Time(in.ModTime)})
	}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-48s %-10s %s\n", "Archive", "Size", "Modified")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 80))
		for _, r := range rows {
			fmt.Fprintf(&b, "%-48s %-10s %s\n", r[0], r[1], r[2])
		}
		return b.String()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Archive", "Size", "Modified").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if col == 0 {
				return s.Bold(true)
			}
			return s
		})
	return t.Render()
}
