package projector

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-algebra/datalog"
)

// FormatResult renders a result as a markdown table. Coll and rel results
// are drained and closed.
func FormatResult(r Result) (string, error) {
	var rows [][]datalog.Binding
	switch r := r.(type) {
	case ScalarResult:
		rows = [][]datalog.Binding{{r.Value}}
	case TupleResult:
		rows = [][]datalog.Binding{r.Values}
	case *CollResult:
		values, err := r.All()
		if err != nil {
			return "", err
		}
		for _, v := range values {
			rows = append(rows, []datalog.Binding{v})
		}
	case *RelResult:
		all, err := r.All()
		if err != nil {
			return "", err
		}
		rows = all
	default:
		return "", datalog.Internal("unknown result %T", r)
	}
	return formatTable(r.Columns(), rows), nil
}

// formatTable formats columns and rows as a markdown table
func formatTable(columns []string, rows [][]datalog.Binding) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", columns)
	}

	tableString := &strings.Builder{}

	// AlignNone keeps the markdown separators plain
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, row := range rows {
		cells := make([]string, len(row))
		for j, b := range row {
			cells[j] = formatBinding(b)
		}
		table.Append(cells)
	}
	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return tableString.String()
}

// formatBinding renders a binding for display
func formatBinding(b datalog.Binding) string {
	if b == nil {
		return "nil"
	}
	v, ok := b.(datalog.TypedValue)
	if !ok {
		return b.String()
	}
	switch val := v.V.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.2f", val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return v.String()
	}
}
