package analytics

import (
	"slices"
	"sort"
)

// OrderingState is either CriterionOrdered or CustomOrdered.
type OrderingState interface {
	isOrderingState()
}

// CriterionOrdered derives order from the active SortCriterion every time.
type CriterionOrdered struct{}

// CustomOrdered is an explicit key sequence set by a manual reorder.
type CustomOrdered struct {
	Keys []string
}

func (CriterionOrdered) isOrderingState() {}
func (CustomOrdered) isOrderingState()    {}

// SuperGroup is a non-owning view over Groups sharing game, country and platform.
type SuperGroup struct {
	Key     SuperGroupKey `json:"key"`
	Members []*Group      `json:"members"`
}

// BuildSuperGroups partitions groups by (game, country, platform).
// SuperGroups come back in key order; members keep their input order.
func BuildSuperGroups(groups []*Group) []*SuperGroup {
	byKey := make(map[SuperGroupKey]*SuperGroup)
	out := make([]*SuperGroup, 0)
	for _, g := range groups {
		k := g.Key.Super()
		sg, ok := byKey[k]
		if !ok {
			sg = &SuperGroup{Key: k}
			byKey[k] = sg
			out = append(out, sg)
		}
		sg.Members = append(sg.Members, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Value is the scalar a Group is ranked by, taken from its windowed metrics.
func Value(g *Group, c SortCriterion) float64 {
	w := g.Metrics.Window
	switch c {
	case SortVolume:
		return float64(w.Installs)
	case SortCost:
		return w.Cost
	case SortRevenue:
		return w.Revenue
	}
	if day, ok := c.RoasDay(); ok {
		return w.RoasAt(day)
	}
	return 0
}

// SuperGroupValue sums member values for volume, cost and revenue and
// averages them for ROAS criteria.
func SuperGroupValue(sg *SuperGroup, c SortCriterion) float64 {
	if c == SortAlphabetical || len(sg.Members) == 0 {
		return 0
	}
	var sum float64
	for _, g := range sg.Members {
		sum += Value(g, c)
	}
	if c.IsRoas() {
		return ratio(sum, len(sg.Members))
	}
	return sum
}

// SortMembers orders Groups by value descending with ties broken by source
// ascending. Alphabetical sorts by source only.
func SortMembers(members []*Group, c SortCriterion) {
	if c == SortAlphabetical {
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Key.Source < members[j].Key.Source
		})
		return
	}
	sort.SliceStable(members, func(i, j int) bool {
		vi, vj := Value(members[i], c), Value(members[j], c)
		if vi != vj {
			return vi > vj
		}
		return members[i].Key.Source < members[j].Key.Source
	})
}

// SortSuperGroups orders SuperGroups by aggregated value descending with ties
// broken by key ascending. Alphabetical sorts by key only.
func SortSuperGroups(sgs []*SuperGroup, c SortCriterion) {
	if c == SortAlphabetical {
		sort.SliceStable(sgs, func(i, j int) bool { return sgs[i].Key.Less(sgs[j].Key) })
		return
	}
	values := make(map[SuperGroupKey]float64, len(sgs))
	for _, sg := range sgs {
		values[sg.Key] = SuperGroupValue(sg, c)
	}
	sort.SliceStable(sgs, func(i, j int) bool {
		vi, vj := values[sgs[i].Key], values[sgs[j].Key]
		if vi != vj {
			return vi > vj
		}
		return sgs[i].Key.Less(sgs[j].Key)
	})
}

// OrderSuperGroups returns a new slice ordered by state. Under a custom order,
// keys missing from the list follow in (game, country, platform) order.
func OrderSuperGroups(sgs []*SuperGroup, c SortCriterion, state OrderingState) []*SuperGroup {
	out := append([]*SuperGroup(nil), sgs...)
	custom, ok := state.(CustomOrdered)
	if !ok {
		SortSuperGroups(out, c)
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return applyCustomOrder(out, func(sg *SuperGroup) string { return sg.Key.String() }, custom.Keys)
}

// OrderMembers returns a new slice ordered by state. Under a custom order,
// sources missing from the list follow in criterion order.
func OrderMembers(members []*Group, c SortCriterion, state OrderingState) []*Group {
	out := append([]*Group(nil), members...)
	SortMembers(out, c)
	if custom, ok := state.(CustomOrdered); ok {
		out = applyCustomOrder(out, func(g *Group) string { return g.Key.Source }, custom.Keys)
	}
	return out
}

// applyCustomOrder puts items named in keys first, in key order, followed by
// the remaining items in their existing order. Unknown keys are ignored.
func applyCustomOrder[T any](items []T, keyOf func(T) string, keys []string) []T {
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[keyOf(it)] = i
	}

	out := make([]T, 0, len(items))
	used := make([]bool, len(items))
	for _, k := range keys {
		i, ok := index[k]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		out = append(out, items[i])
	}
	for i, it := range items {
		if !used[i] {
			out = append(out, it)
		}
	}
	return out
}

// reconcileKeys keeps stored keys in place and appends present keys that the
// stored list has not seen yet, in the order given.
func reconcileKeys(stored, present []string) []string {
	seen := make(map[string]bool, len(stored))
	for _, k := range stored {
		seen[k] = true
	}
	out := append([]string(nil), stored...)
	for _, k := range present {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// moveKey moves key to index within order, clamping the index.
func moveKey(order []string, key string, index int) ([]string, bool) {
	from := indexOf(order, key)
	if from < 0 {
		return order, false
	}
	rest := make([]string, 0, len(order))
	rest = append(rest, order[:from]...)
	rest = append(rest, order[from+1:]...)

	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}
	out := make([]string, 0, len(order))
	out = append(out, rest[:index]...)
	out = append(out, key)
	out = append(out, rest[index:]...)
	return out, true
}

// TranslateIndex maps a drag target picked on a subset of order, such as a
// board filtered to a few apps, onto order itself. The key ends up next to
// the same neighbour it has in the reordered subset; keys outside the subset
// keep their places.
func TranslateIndex(subset, order []string, key string, index int) (int, bool) {
	moved, ok := moveKey(subset, key, index)
	from := indexOf(order, key)
	if !ok || from < 0 {
		return 0, false
	}
	if slices.Equal(moved, subset) {
		return from, true
	}
	rest := make([]string, 0, len(order))
	rest = append(rest, order[:from]...)
	rest = append(rest, order[from+1:]...)

	pos := indexOf(moved, key)
	if pos+1 < len(moved) {
		if i := indexOf(rest, moved[pos+1]); i >= 0 {
			return i, true
		}
	}
	if pos > 0 {
		if i := indexOf(rest, moved[pos-1]); i >= 0 {
			return i + 1, true
		}
	}
	return from, true
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
