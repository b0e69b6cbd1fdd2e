package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/jmigrate/internal/render"
)

// mark is the icon and color that lead a human notice.
type mark struct {
	icon  string
	color lipgloss.Color
	bold  bool
}

var (
	infoMark    = mark{icon: "ℹ", color: lipgloss.Color("8")}
	successMark = mark{icon: "✔", color: lipgloss.Color("2")}
	warnMark    = mark{icon: "⚠", color: lipgloss.Color("3"), bold: true}
	errorMark   = mark{icon: "✘", color: lipgloss.Color("1"), bold: true}
)

func (m mark) style() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(m.color).Bold(m.bold)
}

// writeNotice prints msg after m's icon and an optional label. Without
// colors only the label and message are printed.
func writeNotice(w io.Writer, m mark, label, msg string) {
	if !render.ColorsEnabled() {
		if label != "" {
			msg = label + " " + msg
		}
		fmt.Fprintln(w, msg)
		return
	}
	head := m.style().Render(m.icon)
	if label != "" {
		head += " " + m.style().Render(label)
	}
	if m == infoMark {
		msg = m.style().Render(msg)
	}
	fmt.Fprintf(w, "%s %s\n", head, msg)
}

// writeHumanSuccess prints a result message. Multi-line results (job views,
// tables, export summaries) are printed unmarked.
func writeHumanSuccess(w io.Writer, message string) {
	if message == "" {
		return
	}
	if strings.Contains(message, "\n") {
		fmt.Fprintln(w, message)
		return
	}
	writeNotice(w, successMark, "", message)
}

func writeHumanError(w io.Writer, err error) {
	writeNotice(w, errorMark, "Error:", err.Error())
}
