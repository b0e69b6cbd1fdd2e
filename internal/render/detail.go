package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

const barWidth = 30

// ProgressBar draws a fixed-width bar for a percentage.
func ProgressBar(pct int) string {
	pct = model.ClampProgress(pct)
	filled := pct * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + fmt.Sprintf("] %3d%%", pct)
}

// RenderJob renders the full detail view for a single job.
func RenderJob(j *model.Job) string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle := lipgloss.NewStyle().Foreground(ColorFromName(j.Status.Color()))

	header := "Job " + j.ID
	if k := string(j.Kind); k != "" {
		header = strings.ToUpper(k[:1]) + k[1:] + " job " + j.ID
	}
	b.WriteString(StyledText(header, titleStyle))
	b.WriteString("\n")
	b.WriteString(StyledText(ProgressBar(j.Progress), statusStyle))
	b.WriteString("\n\n")

	type field struct{ label, value string }
	fields := []field{{"Status", statusLabel(j.Status)}}
	switch j.Kind {
	case model.JobKindImport:
		fields = append(fields, field{"Archive", j.Archive}, field{"Files", string(j.Files)})
		if j.Cleanup {
			fields = append(fields, field{"Cleanup", "yes"})
		}
	case model.JobKindExport:
		fields = append(fields,
			field{"Permanent", j.Permanent},
			field{"Temporary", j.Temporary},
			field{"Output", j.Output})
	}
	fields = append(fields,
		field{"Created", humanize.Time(j.CreatedAt)},
		field{"Updated", humanize.Time(j.UpdatedAt)},
		field{"Expires", humanize.Time(j.ExpiresAt)})

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		label := StyledText(fmt.Sprintf("%-10s", f.label+":"), labelStyle)
		value := f.value
		if f.label == "Status" {
			value = StyledText(value, statusStyle)
		}
		fmt.Fprintf(&b, "%s %s\n", label, value)
	}

	if j.Error != "" {
		b.WriteString("\n")
		b.WriteString(StyledText("Error: "+j.Error, lipgloss.NewStyle().Bold(true).Foreground(ColorFromName("red"))))
		b.WriteString("\n")
	}

	if len(j.Messages) > 0 {
		b.WriteString("\n")
		b.WriteString(StyledText("Log", titleStyle))
		b.WriteString("\n")
		b.WriteString(RenderMessages(j.Messages))
	}

	return b.String()
}

// RenderMessages renders a job log, one line per message.
func RenderMessages(msgs []model.Message) string {
	var b strings.Builder
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	for _, m := range msgs {
		style := lipgloss.NewStyle().Foreground(ColorFromName(m.Kind.Color()))
		fmt.Fprintf(&b, "  %s %s\n",
			StyledText(m.Time.UTC().Format("15:04:05"), timeStyle),
			StyledText(fmt.Sprintf("[%s] %s", m.Kind, m.Text), style))
	}
	return b.String()
}
