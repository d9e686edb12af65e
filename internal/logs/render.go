package logs

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/devfleet/devfleet/internal/domain"
)

var (
	timestampStyle = lipgloss.NewStyle().Faint(true)
	serviceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	fieldStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Faint(true)

	levelStyles = map[domain.LogLevel]lipgloss.Style{
		domain.LevelTrace: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		domain.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		domain.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		domain.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		domain.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// Render writes one entry to w in the requested format. It is exported for
// callers that fetch already-parsed records, such as the CLI log client.
func Render(w io.Writer, entry domain.LogEntry, format domain.LogFormat) {
	renderEntry(w, entry, format)
}

// renderEntry writes one entry to w in the requested format. Rendering is
// best effort; a failed write never aborts the stream.
func renderEntry(w io.Writer, entry domain.LogEntry, format domain.LogFormat) {
	switch format {
	case domain.FormatJSON:
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintln(w, string(data))
	case domain.FormatRaw:
		_, _ = fmt.Fprintln(w, entry.Raw)
	default:
		renderPretty(w, entry)
	}
}

func renderPretty(w io.Writer, entry domain.LogEntry) {
	ts := timestampStyle.Render(entry.Timestamp.Local().Format("15:04:05.000"))
	level := levelStyles[entry.Level].Render(fmt.Sprintf("%-5s", entry.Level))
	service := serviceStyle.Render(entry.Service)

	_, _ = fmt.Fprintf(w, "%s %s %s %s\n", ts, level, service, entry.Message)

	if len(entry.Fields) > 0 {
		_, _ = fmt.Fprintf(w, "  %s\n", fieldStyle.Render(formatFields(entry.Fields)))
	}
}

// formatFields renders free-form fields as sorted key=value pairs
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(pairs, " ")
}
