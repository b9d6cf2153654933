package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *RelationRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewRelationRenderer(useColor),
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query: %s", latency, truncateQuery(stringData(event, "query")))

	case QueryAlgebrized:
		s := fmt.Sprintf("%s Algebrized into %s and %s",
			latency,
			f.colorizeCount("tables", intData(event, "tables")),
			f.colorizeCount("constraints", intData(event, "constraints")))
		if empty := stringData(event, "empty"); empty != "" {
			s += " " + f.colorize("(known empty: "+empty+")", color.FgYellow)
		}
		return s

	case QueryPlanCreated:
		return fmt.Sprintf("\n%s\n", stringData(event, "plan"))

	case QueryExecuted:
		return fmt.Sprintf("%s %s Executed on %s → %s",
			latency,
			f.colorize("===", color.FgYellow),
			stringData(event, "backend"),
			f.colorizeCount("rows", intData(event, "rows")))

	case TableMaterialized:
		return fmt.Sprintf("%s Materialized %s as %s",
			latency,
			stringData(event, "alias"),
			f.renderer.RenderRelationWithAttrs(stringsData(event, "columns"), intData(event, "rows")))

	case AggregationExecuted:
		return fmt.Sprintf("%s Aggregated %s into %s",
			latency,
			f.colorizeCount("rows", intData(event, "rows")),
			f.colorizeCount("groups", intData(event, "groups")))

	case PullExecuted:
		return fmt.Sprintf("%s Pull(%d %s) → %s",
			latency,
			event.Data["entity"],
			stringData(event, "pattern"),
			f.colorizeCount("attributes", intData(event, "attributes")))

	case QueryProjected:
		return fmt.Sprintf("%s Projected %s → %s",
			latency,
			stringData(event, "find"),
			f.colorizeCount("rows", intData(event, "rows")))

	case TransactCommitted:
		return fmt.Sprintf("%s %s Transaction %v committed with %s",
			latency,
			f.colorize("===", color.FgGreen),
			event.Data["tx"],
			f.colorizeCount("datoms", intData(event, "datoms")))

	case QueryComplete:
		success, _ := event.Data["success"].(bool)
		if !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Query done.",
			latency,
			f.colorize("===", color.FgGreen))

	case ErrorQueryBinding, ErrorQueryInternal, ErrorBackend:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func intData(event Event, key string) int {
	n, _ := event.Data[key].(int)
	return n
}

func stringData(event Event, key string) string {
	s, _ := event.Data[key].(string)
	return s
}

func stringsData(event Event, key string) []string {
	s, _ := event.Data[key].([]string)
	return s
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		us := d.Microseconds()
		s := fmt.Sprintf("[%dµs]", us)
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	// Different colors for different types
	switch strings.ToLower(label) {
	case "tables", "groups":
		return color.CyanString(text)
	case "rows":
		return color.MagentaString(text)
	case "datoms":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncateQuery shortens long queries for display.
func truncateQuery(query string) string {
	// Remove extra whitespace
	query = strings.Join(strings.Fields(query), " ")

	const maxLen = 80
	if len(query) <= maxLen {
		return query
	}

	return query[:maxLen-3] + "..."
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stdout).Handle
}

// isTerminal checks if the file descriptor is stdout or stderr.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
