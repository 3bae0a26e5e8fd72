package analytics

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/radiusdt/roas-board/internal/models"
)

func testRow(app, network, date string, installs int64) models.RawRow {
	return models.RawRow{App: app, Network: network, Date: date, Installs: installs}
}

func dayOf(n int) string {
	return fmt.Sprintf("2024-01-%02d", n)
}

func dates(days []DailyRecord) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.RawDate
	}
	return out
}

func findGroup(t *testing.T, groups []*Group, key string) *Group {
	t.Helper()
	for _, g := range groups {
		if g.Key.String() == key {
			return g
		}
	}
	t.Fatalf("group %q not found", key)
	return nil
}

func TestBuildGroups_OrderIndependent(t *testing.T) {
	rows := []models.RawRow{
		testRow("Solitaire Android", "Android_AppLovin_US", dayOf(3), 30),
		testRow("Solitaire Android", "Android_Unity_US", dayOf(1), 7),
		testRow("Solitaire Android", "Android_AppLovin_US", dayOf(1), 10),
		testRow("Solitaire Android", "Android_AppLovin_US", dayOf(2), 20),
	}
	reversed := make([]models.RawRow, len(rows))
	for i := range rows {
		reversed[len(rows)-1-i] = rows[i]
	}

	for _, in := range [][]models.RawRow{rows, reversed} {
		groups := BuildGroups(in, ViewNetwork)
		AggregateAll(groups, WindowSpec{})
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		g := findGroup(t, groups, "Solitaire|US|Android|AppLovin")
		if g.Metrics.TotalInstalls != 60 {
			t.Errorf("TotalInstalls = %d, want 60", g.Metrics.TotalInstalls)
		}
		if got := dates(g.Days); !reflect.DeepEqual(got, []string{dayOf(1), dayOf(2), dayOf(3)}) {
			t.Errorf("days = %v, want ascending", got)
		}
	}
}

func TestBuildGroups_PublisherView(t *testing.T) {
	rows := []models.RawRow{
		{App: "Solitaire iOS", Network: "iOS_AppLovin_US", Publisher: "pub-a", Date: dayOf(1), Installs: 1},
		{App: "Solitaire iOS", Network: "iOS_AppLovin_US", Publisher: "pub-b", Date: dayOf(1), Installs: 2},
		{App: "Solitaire iOS", Network: "iOS_Unity_US", Publisher: "pub-a", Date: dayOf(2), Installs: 4},
	}

	network := BuildGroups(rows, ViewNetwork)
	if len(network) != 2 {
		t.Errorf("network view: got %d groups, want 2", len(network))
	}

	publisher := BuildGroups(rows, ViewPublisher)
	if len(publisher) != 2 {
		t.Fatalf("publisher view: got %d groups, want 2", len(publisher))
	}
	g := findGroup(t, publisher, "Solitaire|US|iOS|pub-a")
	if len(g.Days) != 2 {
		t.Errorf("pub-a days = %d, want 2", len(g.Days))
	}
}

func TestGroupKey_SeparatorInParts(t *testing.T) {
	a := GroupKey{Game: "G", Country: "US", Platform: "Android", Source: "x|US|Android|y"}
	b := GroupKey{Game: "G|US|Android|x", Country: "US", Platform: "Android", Source: "y"}
	if a.String() == b.String() {
		t.Fatalf("distinct keys share id %q", a.String())
	}
	if got := (GroupKey{Game: `a\`, Source: "b"}).String(); got != `a\\|||b` {
		t.Errorf("escaped id = %q", got)
	}
	if a.Super().String() != "G|US|Android" {
		t.Errorf("super id = %q", a.Super().String())
	}
}

func TestBuildGroups_DeterministicOrder(t *testing.T) {
	rows := []models.RawRow{
		{App: "G", Network: "Android_AppLovin_US", Publisher: "x|US|Android|y", Date: dayOf(1), Installs: 1},
		{App: "G|US|Android|x", Network: "Android_AppLovin_US", Publisher: "y", Date: dayOf(1), Installs: 2},
		{App: "G", Network: "Android_AppLovin_US", Publisher: "a", Date: dayOf(1), Installs: 3},
	}
	var first []string
	for i := 0; i < 20; i++ {
		groups := BuildGroups(rows, ViewPublisher)
		ids := make([]string, len(groups))
		for j, g := range groups {
			ids[j] = g.Key.String()
		}
		if first == nil {
			first = ids
			continue
		}
		if !reflect.DeepEqual(ids, first) {
			t.Fatalf("run %d order = %v, want %v", i, ids, first)
		}
	}
	if len(first) != 3 || first[0] != "G|US|Android|a" {
		t.Errorf("order = %v", first)
	}
}

func TestBuildGroups_Empty(t *testing.T) {
	groups := BuildGroups(nil, ViewNetwork)
	if groups == nil || len(groups) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", groups)
	}
}

func TestSortDays_Chronological(t *testing.T) {
	in := []string{"2024-01-01", "2023-12-31", "2023-11-30", "2024-02-01", "2023-12-01"}
	days := make([]DailyRecord, 0, len(in))
	for _, d := range in {
		days = append(days, NewDailyRecord(models.RawRow{Date: d}))
	}
	SortDays(days)

	want := []string{"2023-11-30", "2023-12-01", "2023-12-31", "2024-01-01", "2024-02-01"}
	if got := dates(days); !reflect.DeepEqual(got, want) {
		t.Errorf("SortDays = %v, want %v", got, want)
	}
}

func TestSortDays_InvalidDatesKeepInputOrder(t *testing.T) {
	in := []string{"garbage", "2024-01-02", "", "2024-01-01", "32/13/2024"}
	days := make([]DailyRecord, 0, len(in))
	for _, d := range in {
		days = append(days, NewDailyRecord(models.RawRow{Date: d}))
	}
	SortDays(days)

	want := []string{"2024-01-01", "2024-01-02", "garbage", "", "32/13/2024"}
	if got := dates(days); !reflect.DeepEqual(got, want) {
		t.Errorf("SortDays = %v, want %v", got, want)
	}
	if FormatDay(days[2]) != InvalidDate {
		t.Errorf("FormatDay(garbage) = %q, want %q", FormatDay(days[2]), InvalidDate)
	}
}

func TestSortDays_Idempotent(t *testing.T) {
	in := []string{"2024-03-01", "bad", "2024-01-15", "2024-01-15", "2023-12-31", "also bad"}
	days := make([]DailyRecord, 0, len(in))
	for i, d := range in {
		days = append(days, NewDailyRecord(models.RawRow{Date: d, Installs: int64(i)}))
	}
	SortDays(days)
	once := append([]DailyRecord(nil), days...)
	SortDays(days)

	if !reflect.DeepEqual(once, days) {
		t.Errorf("second sort changed order: %v vs %v", dates(once), dates(days))
	}
}

func TestNewDailyRecord_ClampsAndDropsZeroRoas(t *testing.T) {
	d := NewDailyRecord(models.RawRow{
		Date:     "2024-01-05",
		Installs: -3,
		Cost:     -1,
		Revenue:  12.5,
		Roas:     map[int]float64{0: 0.1, 7: 0, 5: 0.9},
	})
	if d.Installs != 0 || d.Cost != 0 || d.Revenue != 12.5 {
		t.Errorf("unexpected measures: %+v", d)
	}
	if len(d.Roas) != 1 || d.RoasAt(0) != 0.1 {
		t.Errorf("Roas = %v, want only day 0", d.Roas)
	}
	if !d.ValidDate {
		t.Error("expected valid date")
	}
}

func TestFormatDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-05":           "2024-01-05",
		"1/5/2024":             "2024-01-05",
		"2024-01-05T10:00:00Z": "2024-01-05",
		"not a date":           InvalidDate,
		"":                     InvalidDate,
	}
	for in, want := range tests {
		if got := FormatDate(in); got != want {
			t.Errorf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}
