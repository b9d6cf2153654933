package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// RelationRenderer provides pretty-printing for row sets in trace output
type RelationRenderer struct {
	useColor bool
}

// NewRelationRenderer creates a new relation renderer
func NewRelationRenderer(useColor bool) *RelationRenderer {
	return &RelationRenderer{useColor: useColor}
}

// RenderRelationWithAttrs renders column names and a row count. A negative
// count omits it.
func (r *RelationRenderer) RenderRelationWithAttrs(attrs []string, rowCount int) string {
	attrList := strings.Join(attrs, " ")

	if r.useColor {
		result := fmt.Sprintf("%s%s%s",
			color.BlueString("Relation(["),
			color.CyanString(attrList),
			color.BlueString("]"))

		if rowCount >= 0 {
			result += fmt.Sprintf("%s%s%s",
				color.BlueString(", "),
				r.colorizeCount("Rows", rowCount),
				color.BlueString(")"))
		} else {
			result += color.BlueString(")")
		}
		return result
	}

	if rowCount >= 0 {
		return fmt.Sprintf("Relation([%s], %d Rows)", attrList, rowCount)
	}
	return fmt.Sprintf("Relation([%s])", attrList)
}

// colorizeCount formats a count with color based on size
func (r *RelationRenderer) colorizeCount(label string, count int) string {
	if !r.useColor {
		return fmt.Sprintf("%d %s", count, label)
	}

	countStr := fmt.Sprintf("%d", count)

	// Color based on size
	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}

	return fmt.Sprintf("%s %s", countStr, label)
}
