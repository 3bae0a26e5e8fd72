package presenter

import (
	"fmt"

	"github.com/radiusdt/roas-board/internal/analytics"
)

// Kind decides how a column value is rendered.
type Kind int

const (
	KindCount Kind = iota
	KindCurrency
	KindPercent
	KindTrendCount
	KindTrendPercent
)

// Column is one metric column of the board table.
type Column struct {
	ID    string
	Label string
	Kind  Kind
	value func(analytics.Metrics) float64
}

// Value extracts the column's raw value from a Group's metrics.
func (c Column) Value(m analytics.Metrics) float64 {
	return c.value(m)
}

var (
	columns     []Column
	columnsByID map[string]Column
)

// DefaultColumns are shown when a board has no visible-column setting.
var DefaultColumns = []string{"installs", "cost", "revenue", "roas_d0", "roas_d7", "roas_d30", "trend_installs"}

func init() {
	columns = []Column{
		{ID: "installs", Label: "Installs", Kind: KindCount, value: func(m analytics.Metrics) float64 { return float64(m.Window.Installs) }},
		{ID: "total_installs", Label: "Installs (all time)", Kind: KindCount, value: func(m analytics.Metrics) float64 { return float64(m.TotalInstalls) }},
		{ID: "avg_installs", Label: "Avg daily installs", Kind: KindCount, value: func(m analytics.Metrics) float64 { return m.AvgInstalls }},
		{ID: "cost", Label: "Cost", Kind: KindCurrency, value: func(m analytics.Metrics) float64 { return m.Window.Cost }},
		{ID: "revenue", Label: "Revenue", Kind: KindCurrency, value: func(m analytics.Metrics) float64 { return m.Window.Revenue }},
	}
	for _, day := range analytics.CohortDays {
		day := day
		columns = append(columns, Column{
			ID:    fmt.Sprintf("roas_d%d", day),
			Label: fmt.Sprintf("ROAS D%d", day),
			Kind:  KindPercent,
			value: func(m analytics.Metrics) float64 { return m.Window.RoasAt(day) },
		})
	}
	columns = append(columns,
		Column{ID: "trend_installs", Label: "Installs trend", Kind: KindTrendCount, value: func(m analytics.Metrics) float64 { return m.Trend.Installs }},
		Column{ID: "trend_roas_d0", Label: "ROAS D0 trend", Kind: KindTrendPercent, value: func(m analytics.Metrics) float64 { return m.Trend.RoasD0 }},
		Column{ID: "trend_roas_d7", Label: "ROAS D7 trend", Kind: KindTrendPercent, value: func(m analytics.Metrics) float64 { return m.Trend.RoasD7 }},
		Column{ID: "trend_roas_d14", Label: "ROAS D14 trend", Kind: KindTrendPercent, value: func(m analytics.Metrics) float64 { return m.Trend.RoasD14 }},
	)

	columnsByID = make(map[string]Column, len(columns))
	for _, c := range columns {
		columnsByID[c.ID] = c
	}
}

// Columns returns every known column in display order.
func Columns() []Column {
	return append([]Column(nil), columns...)
}

// ColumnByID looks up a column.
func ColumnByID(id string) (Column, bool) {
	c, ok := columnsByID[id]
	return c, ok
}

// ResolveColumns maps visible column IDs to columns, keeping the given order
// and dropping duplicates. An empty list selects DefaultColumns.
func ResolveColumns(visible []string) ([]Column, error) {
	if len(visible) == 0 {
		visible = DefaultColumns
	}
	out := make([]Column, 0, len(visible))
	seen := make(map[string]bool, len(visible))
	for _, id := range visible {
		c, ok := columnsByID[id]
		if !ok {
			return nil, &UnknownColumnError{Column: id}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out, nil
}
