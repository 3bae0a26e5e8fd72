package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/radiusdt/roas-board/internal/database"
	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/models"
)

func testRows() []models.RawRow {
	return []models.RawRow{
		{App: "Solitaire Android", Network: "Android_AppLovin_US", Date: "2024-01-02", Installs: 20},
		{App: "Solitaire Android", Network: "Android_AppLovin_US", Date: "2024-01-01", Installs: 10, Roas: map[int]float64{0: 0.1}},
		{App: "Merge iOS", Network: "iOS_Unity_DE", Publisher: "pub-1", Date: "2024-01-03", Installs: 5},
		{App: "Merge iOS", Network: "iOS_Unity_DE", Date: "not a date", Installs: 1},
	}
}

func testState() *models.BoardState {
	return &models.BoardState{
		Criterion:  "roas_d7",
		View:       "network",
		SuperOrder: models.OrderingSnapshot{Mode: models.OrderModeCustom, Keys: []string{"B|US|iOS", "A|US|iOS"}},
		MemberOrders: map[string]models.OrderingSnapshot{
			"B|US|iOS": {Mode: models.OrderModeCustom, Keys: []string{"Unity"}},
		},
		Hidden: []string{"A|US|iOS|Moloco"},
		Settings: models.Settings{
			DateRange:      &models.DateRange{Start: "2024-01-01"},
			VisibleColumns: []string{"installs", "roas_d7"},
			FormattingRules: []models.FormattingRule{
				{Column: "roas_d7", Operator: models.OpGreaterEqual, Threshold: 1, Background: "#00ff00", Active: true},
			},
		},
		UpdatedAt: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}
}

func newSQLiteStore(t *testing.T) *SQLiteStateStore {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStateStore(db)
}

func TestInMemoryRowStore_UpsertReplacesByKey(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRowStore()
	if err := s.UpsertRows(ctx, testRows()); err != nil {
		t.Fatal(err)
	}

	update := models.RawRow{App: "Solitaire Android", Network: "Android_AppLovin_US", Date: "2024-01-02", Installs: 99}
	if err := s.UpsertRows(ctx, []models.RawRow{update}); err != nil {
		t.Fatal(err)
	}

	rows, err := s.ListRows(ctx, models.RowFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	var found bool
	for _, r := range rows {
		if r.Date == "2024-01-02" && r.App == "Solitaire Android" {
			found = true
			if r.Installs != 99 {
				t.Errorf("installs = %d, want 99", r.Installs)
			}
		}
	}
	if !found {
		t.Error("updated row missing")
	}
}

func TestInMemoryRowStore_PublisherIsPartOfKey(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRowStore()
	rows := []models.RawRow{
		{App: "A", Network: "N", Publisher: "p1", Date: "2024-01-01", Installs: 1},
		{App: "A", Network: "N", Publisher: "p2", Date: "2024-01-01", Installs: 2},
	}
	if err := s.UpsertRows(ctx, rows); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListRows(ctx, models.RowFilter{})
	if len(got) != 2 {
		t.Errorf("got %d rows, want 2", len(got))
	}
}

func TestInMemoryRowStore_Filter(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRowStore()
	if err := s.UpsertRows(ctx, testRows()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter models.RowFilter
		want   []string
	}{
		{"no filter keeps invalid dates", models.RowFilter{}, []string{"2024-01-01", "2024-01-02", "2024-01-03", "not a date"}},
		{"app filter is case-insensitive", models.RowFilter{Apps: []string{"merge ios"}}, []string{"2024-01-03", "not a date"}},
		{"date range", models.RowFilter{StartDate: "2024-01-02", EndDate: "2024-01-02"}, []string{"2024-01-02"}},
		{"open end", models.RowFilter{StartDate: "2024-01-02"}, []string{"2024-01-02", "2024-01-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.ListRows(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(rows))
			for i, r := range rows {
				got[i] = r.Date
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("dates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryRowStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryRowStore()
	in := []models.RawRow{{App: "A", Network: "N", Date: "2024-01-01", Roas: map[int]float64{0: 0.5}}}
	if err := s.UpsertRows(ctx, in); err != nil {
		t.Fatal(err)
	}
	in[0].Roas[0] = 9

	out, _ := s.ListRows(ctx, models.RowFilter{})
	out[0].Roas[0] = 7

	again, _ := s.ListRows(ctx, models.RowFilter{})
	if again[0].Roas[0] != 0.5 {
		t.Errorf("stored roas mutated: %v", again[0].Roas[0])
	}
}

func TestStateStores(t *testing.T) {
	stores := map[string]func(t *testing.T) StateStore{
		"memory": func(t *testing.T) StateStore { return NewInMemoryStateStore() },
		"sqlite": func(t *testing.T) StateStore { return newSQLiteStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			if _, err := s.LoadState(ctx, "main"); !errors.Is(err, ErrStateNotFound) {
				t.Fatalf("LoadState on empty store: got %v, want ErrStateNotFound", err)
			}

			want := testState()
			if err := s.SaveState(ctx, "main", want); err != nil {
				t.Fatalf("SaveState: %v", err)
			}
			got, err := s.LoadState(ctx, "main")
			if err != nil {
				t.Fatalf("LoadState: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}

			// overwrite
			want.Criterion = "cost"
			want.SuperOrder = models.OrderingSnapshot{Mode: models.OrderModeCriterion}
			if err := s.SaveState(ctx, "main", want); err != nil {
				t.Fatal(err)
			}
			got, _ = s.LoadState(ctx, "main")
			if got.Criterion != "cost" || got.SuperOrder.Mode != models.OrderModeCriterion {
				t.Errorf("overwrite not applied: %+v", got)
			}

			// boards are independent
			if _, err := s.LoadState(ctx, "other"); !errors.Is(err, ErrStateNotFound) {
				t.Errorf("other board: got %v", err)
			}
		})
	}
}

func TestInMemoryStateStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStateStore()
	st := testState()
	if err := s.SaveState(ctx, "main", st); err != nil {
		t.Fatal(err)
	}
	st.Hidden[0] = "changed"

	got, _ := s.LoadState(ctx, "main")
	if got.Hidden[0] != "A|US|iOS|Moloco" {
		t.Errorf("store shares memory with caller: %v", got.Hidden)
	}
}

func TestBuildRowQuery(t *testing.T) {
	q, args := buildRowQuery(models.RowFilter{}, pgPlaceholder)
	if strings.Contains(q, "WHERE") || len(args) != 0 {
		t.Errorf("unfiltered query = %q, args %v", q, args)
	}

	q, args = buildRowQuery(models.RowFilter{Apps: []string{"A", "B"}}, pgPlaceholder)
	if !strings.Contains(q, "WHERE app IN ($1, $2)") {
		t.Errorf("query = %q", q)
	}
	if !reflect.DeepEqual(args, []any{"A", "B"}) {
		t.Errorf("args = %v", args)
	}
}

func TestClickHouseQuery(t *testing.T) {
	s := NewClickHouseRowStore(nil, "cohort_rows")
	q, args := s.query(models.RowFilter{Apps: []string{"Solitaire Android"}})

	if !strings.Contains(q, "roas_d0, roas_d1, roas_d3, roas_d7, roas_d14, roas_d30, roas_d60, roas_d90 FROM cohort_rows") {
		t.Errorf("query = %q", q)
	}
	if !strings.Contains(q, "WHERE app IN (?)") || len(args) != 1 {
		t.Errorf("query = %q, args %v", q, args)
	}
	if err := s.UpsertRows(context.Background(), nil); !errors.Is(err, ErrReadOnly) {
		t.Errorf("UpsertRows: got %v, want ErrReadOnly", err)
	}
}

func TestClickHouseRecord(t *testing.T) {
	rec := newClickHouseRecord()
	dest := rec.dest()
	if len(dest) != 7+len(rec.roas) {
		t.Fatalf("dest has %d columns", len(dest))
	}
	// Date and Date32 columns only scan into time.Time.
	day, ok := dest[3].(*time.Time)
	if !ok {
		t.Fatalf("day destination is %T, want *time.Time", dest[3])
	}
	if _, ok := dest[4].(*int64); !ok {
		t.Errorf("installs destination is %T, want *int64", dest[4])
	}
	for i, d := range dest[7:] {
		if _, ok := d.(*float64); !ok {
			t.Errorf("roas destination %d is %T, want *float64", i, d)
		}
	}

	*dest[0].(*string) = "Solitaire Android"
	*dest[1].(*string) = "Android_AppLovin_US"
	*day = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	*dest[4].(*int64) = 12
	*dest[7].(*float64) = 0.25

	row := rec.rawRow()
	if row.Date != "2024-03-05" || row.Installs != 12 || row.App != "Solitaire Android" {
		t.Errorf("row = %+v", row)
	}
	if len(row.Roas) != 1 || row.Roas[0] != 0.25 {
		t.Errorf("roas = %v, want only day 0", row.Roas)
	}
}

func TestDecodeRoas(t *testing.T) {
	roas, err := decodeRoas([]byte(`{"0":0.1,"7":0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if roas[0] != 0.1 || roas[7] != 0.5 {
		t.Errorf("roas = %v", roas)
	}
	if roas, _ := decodeRoas([]byte(`{}`)); roas != nil {
		t.Errorf("empty object should decode to nil, got %v", roas)
	}
	if _, err := decodeRoas([]byte(`not json`)); err == nil {
		t.Error("expected error")
	}
}

func TestInstrumentedStores(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics("test")
	rows := NewInstrumentedRowStore(NewInMemoryRowStore(), "memory", m)
	states := NewInstrumentedStateStore(NewInMemoryStateStore(), "memory", m)

	if err := rows.UpsertRows(ctx, testRows()); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.RowsUpserted); got != 4 {
		t.Errorf("rows upserted = %v, want 4", got)
	}

	if _, err := states.LoadState(ctx, "missing"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("got %v", err)
	}
	if got := testutil.ToFloat64(m.StoreErrors.WithLabelValues("memory", "load_state")); got != 0 {
		t.Errorf("not-found counted as error: %v", got)
	}

	ro := NewInstrumentedRowStore(NewClickHouseRowStore(nil, "t"), "clickhouse", m)
	_ = ro.UpsertRows(ctx, testRows())
	if got := testutil.ToFloat64(m.StoreErrors.WithLabelValues("clickhouse", "upsert_rows")); got != 1 {
		t.Errorf("clickhouse upsert errors = %v, want 1", got)
	}
}
