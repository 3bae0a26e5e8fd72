package analytics

import (
	"reflect"
	"testing"

	"github.com/radiusdt/roas-board/internal/models"
)

func testGroup(game, country, platform, source string, installs ...int64) *Group {
	g := &Group{Key: GroupKey{Game: game, Country: country, Platform: platform, Source: source}}
	for i, n := range installs {
		g.Days = append(g.Days, NewDailyRecord(models.RawRow{Date: dayOf(i + 1), Installs: n}))
	}
	Aggregate(g, WindowSpec{})
	return g
}

func withRoas(g *Group, day int, values ...float64) *Group {
	for i := range g.Days {
		if i < len(values) && values[i] > 0 {
			if g.Days[i].Roas == nil {
				g.Days[i].Roas = make(map[int]float64)
			}
			g.Days[i].Roas[day] = values[i]
		}
	}
	Aggregate(g, WindowSpec{})
	return g
}

func sources(gs []*Group) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Key.Source
	}
	return out
}

func superIDs(sgs []*SuperGroup) []string {
	out := make([]string, len(sgs))
	for i, sg := range sgs {
		out[i] = sg.Key.String()
	}
	return out
}

func TestSortMembers_ByVolume(t *testing.T) {
	a := testGroup("G", "US", "iOS", "A", 10, 20, 30)
	b := testGroup("G", "US", "iOS", "B", 5, 5, 5)
	members := []*Group{b, a}

	SortMembers(members, SortVolume)
	if got := sources(members); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("order = %v, want [A B]", got)
	}
}

func TestSortMembers_TiesBySource(t *testing.T) {
	members := []*Group{
		testGroup("G", "US", "iOS", "Zeta", 10),
		testGroup("G", "US", "iOS", "Alpha", 10),
		testGroup("G", "US", "iOS", "Mid", 20),
	}
	SortMembers(members, SortVolume)
	if got := sources(members); !reflect.DeepEqual(got, []string{"Mid", "Alpha", "Zeta"}) {
		t.Errorf("order = %v, want [Mid Alpha Zeta]", got)
	}
}

func TestSortMembers_AlphabeticalIgnoresValue(t *testing.T) {
	members := []*Group{
		testGroup("G", "US", "iOS", "Unity", 1000),
		testGroup("G", "US", "iOS", "AppLovin", 1),
		testGroup("G", "US", "iOS", "Moloco", 50),
	}
	SortMembers(members, SortAlphabetical)
	if got := sources(members); !reflect.DeepEqual(got, []string{"AppLovin", "Moloco", "Unity"}) {
		t.Errorf("order = %v", got)
	}
}

func TestSortMembers_ByRoas(t *testing.T) {
	low := withRoas(testGroup("G", "US", "iOS", "Low", 1, 1), 7, 0.1, 0.1)
	high := withRoas(testGroup("G", "US", "iOS", "High", 1, 1), 7, 0, 0.9)
	members := []*Group{low, high}

	SortMembers(members, SortRoas(7))
	if got := sources(members); !reflect.DeepEqual(got, []string{"High", "Low"}) {
		t.Errorf("order = %v, want [High Low]", got)
	}
}

func TestSuperGroupValue(t *testing.T) {
	sg := &SuperGroup{Members: []*Group{
		withRoas(testGroup("G", "US", "iOS", "A", 10), 0, 0.2),
		withRoas(testGroup("G", "US", "iOS", "B", 30), 0, 0.6),
	}}
	if v := SuperGroupValue(sg, SortVolume); v != 40 {
		t.Errorf("volume = %v, want 40", v)
	}
	if v := SuperGroupValue(sg, SortRoas(0)); !almostEqual(v, 0.4) {
		t.Errorf("roas_d0 = %v, want 0.4", v)
	}
	if v := SuperGroupValue(sg, SortAlphabetical); v != 0 {
		t.Errorf("alphabetical = %v, want 0", v)
	}
	if v := SuperGroupValue(&SuperGroup{}, SortRoas(0)); v != 0 {
		t.Errorf("empty roas = %v, want 0", v)
	}
}

func TestOrderSuperGroups_Criterion(t *testing.T) {
	groups := []*Group{
		testGroup("Alpha", "US", "iOS", "A", 5),
		testGroup("Beta", "DE", "Android", "A", 50),
		testGroup("Beta", "DE", "Android", "B", 1),
		testGroup("Gamma", "US", "iOS", "A", 5),
	}
	sgs := BuildSuperGroups(groups)

	got := superIDs(OrderSuperGroups(sgs, SortVolume, CriterionOrdered{}))
	want := []string{"Beta|DE|Android", "Alpha|US|iOS", "Gamma|US|iOS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("volume order = %v, want %v", got, want)
	}

	got = superIDs(OrderSuperGroups(sgs, SortAlphabetical, CriterionOrdered{}))
	want = []string{"Alpha|US|iOS", "Beta|DE|Android", "Gamma|US|iOS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alphabetical order = %v, want %v", got, want)
	}
}

func TestOrderSuperGroups_CriterionRoundTrip(t *testing.T) {
	groups := []*Group{
		testGroup("Zed", "US", "iOS", "A", 100),
		testGroup("Alpha", "US", "iOS", "A", 5),
		testGroup("Mid", "US", "iOS", "A", 50),
	}
	sgs := BuildSuperGroups(groups)

	before := superIDs(OrderSuperGroups(sgs, SortVolume, CriterionOrdered{}))
	_ = OrderSuperGroups(sgs, SortAlphabetical, CriterionOrdered{})
	after := superIDs(OrderSuperGroups(sgs, SortVolume, CriterionOrdered{}))

	if !reflect.DeepEqual(before, after) {
		t.Errorf("volume order changed: %v vs %v", before, after)
	}
	if before[0] != "Zed|US|iOS" {
		t.Errorf("expected Zed first, got %v", before)
	}
}

func TestOrderSuperGroups_CustomAppendsMissingKeysAscending(t *testing.T) {
	groups := []*Group{
		testGroup("D", "US", "iOS", "A", 1),
		testGroup("C", "US", "iOS", "A", 100),
		testGroup("B", "US", "iOS", "A", 1000),
		testGroup("A", "US", "iOS", "A", 10),
	}
	sgs := BuildSuperGroups(groups)
	state := CustomOrdered{Keys: []string{"C|US|iOS", "gone|US|iOS", "A|US|iOS"}}

	got := superIDs(OrderSuperGroups(sgs, SortVolume, state))
	want := []string{"C|US|iOS", "A|US|iOS", "B|US|iOS", "D|US|iOS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("custom order = %v, want %v", got, want)
	}
}

func TestOrderMembers_CustomAppendsInCriterionOrder(t *testing.T) {
	members := []*Group{
		testGroup("G", "US", "iOS", "A", 1),
		testGroup("G", "US", "iOS", "B", 30),
		testGroup("G", "US", "iOS", "C", 20),
	}
	got := sources(OrderMembers(members, SortVolume, CustomOrdered{Keys: []string{"A"}}))
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("order = %v, want [A B C]", got)
	}
	// input slice untouched
	if sources(members)[0] != "A" || sources(members)[1] != "B" {
		t.Errorf("input reordered: %v", sources(members))
	}
}

func TestMoveKey(t *testing.T) {
	order := []string{"a", "b", "c", "d"}
	tests := []struct {
		key   string
		index int
		want  []string
	}{
		{"a", 2, []string{"b", "c", "a", "d"}},
		{"d", 0, []string{"d", "a", "b", "c"}},
		{"b", 99, []string{"a", "c", "d", "b"}},
		{"c", -5, []string{"c", "a", "b", "d"}},
	}
	for _, tt := range tests {
		got, ok := moveKey(order, tt.key, tt.index)
		if !ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("moveKey(%s, %d) = %v, want %v", tt.key, tt.index, got, tt.want)
		}
	}
	if _, ok := moveKey(order, "x", 0); ok {
		t.Error("expected unknown key to fail")
	}
}

func TestTranslateIndex(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		name   string
		subset []string
		key    string
		index  int
		want   []string
	}{
		{"before next neighbour", []string{"b", "d"}, "d", 0, []string{"a", "d", "b", "c", "e"}},
		{"after previous neighbour", []string{"b", "d"}, "b", 5, []string{"a", "c", "d", "b", "e"}},
		{"no-op", []string{"b", "d"}, "b", 0, order},
		{"single key stays", []string{"c"}, "c", 0, order},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, ok := TranslateIndex(tt.subset, order, tt.key, tt.index)
			if !ok {
				t.Fatal("expected ok")
			}
			got, _ := moveKey(order, tt.key, index)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("index %d gives %v, want %v", index, got, tt.want)
			}
		})
	}

	if _, ok := TranslateIndex([]string{"b"}, order, "x", 0); ok {
		t.Error("key outside subset should fail")
	}
	if _, ok := TranslateIndex([]string{"b", "x"}, order, "x", 0); ok {
		t.Error("key outside order should fail")
	}
}
