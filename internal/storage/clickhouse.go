package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/radiusdt/roas-board/internal/analytics"
	"github.com/radiusdt/roas-board/internal/models"
)

// ClickHouseRowStore reads cohort rows from a warehouse table with columns
// app, network, publisher String; day Date (or Date32); installs Int64;
// cost, revenue Float64; and one Float64 column per cohort day
// (roas_d0 ... roas_d90). It does not accept writes; the warehouse is loaded
// by its own pipeline.
type ClickHouseRowStore struct {
	conn  driver.Conn
	table string
}

func NewClickHouseRowStore(conn driver.Conn, table string) *ClickHouseRowStore {
	return &ClickHouseRowStore{conn: conn, table: table}
}

func roasColumns() []string {
	cols := make([]string, len(analytics.CohortDays))
	for i, day := range analytics.CohortDays {
		cols[i] = fmt.Sprintf("roas_d%d", day)
	}
	return cols
}

func (s *ClickHouseRowStore) query(filter models.RowFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT app, network, publisher, day, installs, cost, revenue, ")
	sb.WriteString(strings.Join(roasColumns(), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(s.table)

	args := make([]any, 0, len(filter.Apps))
	if len(filter.Apps) > 0 {
		marks := make([]string, len(filter.Apps))
		for i, app := range filter.Apps {
			marks[i] = "?"
			args = append(args, app)
		}
		sb.WriteString(" WHERE app IN (" + strings.Join(marks, ", ") + ")")
	}
	sb.WriteString(" ORDER BY day, app, network, publisher")
	return sb.String(), args
}

func (s *ClickHouseRowStore) ListRows(ctx context.Context, filter models.RowFilter) ([]models.RawRow, error) {
	query, args := s.query(filter)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clickhouse rows: %w", err)
	}
	defer rows.Close()

	dateFilter := models.RowFilter{StartDate: filter.StartDate, EndDate: filter.EndDate}
	out := make([]models.RawRow, 0)
	for rows.Next() {
		rec := newClickHouseRecord()
		if err := rows.Scan(rec.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan clickhouse row: %w", err)
		}
		row := rec.rawRow()
		if matchesFilter(row, dateFilter) {
			out = append(out, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clickhouse rows: %w", err)
	}
	return out, nil
}

// clickHouseRecord holds one scanned row in the driver's native types.
// Date columns only scan into time.Time.
type clickHouseRecord struct {
	app       string
	network   string
	publisher string
	day       time.Time
	installs  int64
	cost      float64
	revenue   float64
	roas      []float64
}

func newClickHouseRecord() *clickHouseRecord {
	return &clickHouseRecord{roas: make([]float64, len(analytics.CohortDays))}
}

// dest returns scan destinations in the column order of query.
func (r *clickHouseRecord) dest() []any {
	dest := []any{&r.app, &r.network, &r.publisher, &r.day, &r.installs, &r.cost, &r.revenue}
	for i := range r.roas {
		dest = append(dest, &r.roas[i])
	}
	return dest
}

func (r *clickHouseRecord) rawRow() models.RawRow {
	row := models.RawRow{
		App:       r.app,
		Network:   r.network,
		Publisher: r.publisher,
		Date:      r.day.Format(analytics.DateLayout),
		Installs:  r.installs,
		Cost:      r.cost,
		Revenue:   r.revenue,
	}
	for i, v := range r.roas {
		if v > 0 {
			if row.Roas == nil {
				row.Roas = make(map[int]float64)
			}
			row.Roas[analytics.CohortDays[i]] = v
		}
	}
	return row
}

func (s *ClickHouseRowStore) UpsertRows(ctx context.Context, rows []models.RawRow) error {
	return ErrReadOnly
}
