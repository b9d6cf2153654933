package projector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
)

func TestFormatResult(t *testing.T) {
	t.Run("Relation", func(t *testing.T) {
		q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
		plan := compile(t, q, algebrizer.QueryInputs{})
		res, err := Project(context.Background(), q.Find, plan, rowsOf(
			row(ref(1), datalog.String("Alice")),
			row(ref(2), datalog.String("Bob")),
		), Options{})
		require.NoError(t, err)

		out, err := FormatResult(res)
		require.NoError(t, err)
		assert.Contains(t, out, "?e")
		assert.Contains(t, out, "?name")
		assert.Contains(t, out, "Alice")
		assert.NotContains(t, out, `"Alice"`, "strings render bare")
		assert.True(t, strings.HasSuffix(out, "\n_2 rows_\n"))
	})

	t.Run("Empty", func(t *testing.T) {
		q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
		plan := compile(t, q, algebrizer.QueryInputs{})
		res, err := Project(context.Background(), q.Find, plan, rowsOf(), Options{})
		require.NoError(t, err)

		out, err := FormatResult(res)
		require.NoError(t, err)
		assert.Equal(t, "_Columns: [?e ?name]_\n\n_No rows_", out)
	})

	t.Run("Scalar", func(t *testing.T) {
		out, err := FormatResult(ScalarResult{Value: datalog.Double(2.5), columns: []string{"(avg ?age)"}})
		require.NoError(t, err)
		assert.Contains(t, out, "(avg ?age)")
		assert.Contains(t, out, "2.50")
		assert.Contains(t, out, "_1 rows_")
	})
}

func TestFormatBinding(t *testing.T) {
	tests := []struct {
		in   datalog.Binding
		want string
	}{
		{nil, "nil"},
		{datalog.String("x"), "x"},
		{datalog.Long(42), "42"},
		{datalog.Double(1.0 / 3), "0.33"},
		{datalog.Boolean(true), "true"},
		{datalog.KeywordValue(datalog.NewKeyword(":color/red")), ":color/red"},
		{datalog.Instant(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)), "2024-01-01 12:00:00"},
		{datalog.Vector{datalog.Long(1), datalog.Long(2)}, "[1 2]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBinding(tt.in))
	}
}
