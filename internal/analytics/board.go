package analytics

import (
	"errors"
	"sort"
	"time"

	"github.com/radiusdt/roas-board/internal/models"
)

// ErrUnknownKey is returned when a move names a key that is not on the board.
var ErrUnknownKey = errors.New("unknown key")

// VisibilitySet holds hidden Group keys. It only affects display.
type VisibilitySet map[string]struct{}

// NewVisibilitySet builds a set from keys.
func NewVisibilitySet(keys ...string) VisibilitySet {
	s := make(VisibilitySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Hidden reports whether key is hidden.
func (s VisibilitySet) Hidden(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the hidden keys sorted.
func (s VisibilitySet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupView is a Group as handed to the presentation layer.
type GroupView struct {
	*Group
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Hidden bool    `json:"hidden"`
}

// SuperGroupView is an ordered SuperGroup with its ordered members.
type SuperGroupView struct {
	Key     SuperGroupKey `json:"key"`
	ID      string        `json:"id"`
	Value   float64       `json:"value"`
	Custom  bool          `json:"custom_member_order"`
	Members []GroupView   `json:"members"`
}

// VisibleMembers returns the members that are not hidden.
func (v SuperGroupView) VisibleMembers() []GroupView {
	out := make([]GroupView, 0, len(v.Members))
	for _, m := range v.Members {
		if !m.Hidden {
			out = append(out, m)
		}
	}
	return out
}

// BoardView is the derived, ordered output of a Board.
type BoardView struct {
	Criterion   SortCriterion    `json:"criterion"`
	View        View             `json:"view"`
	Custom      bool             `json:"custom_order"`
	SuperGroups []SuperGroupView `json:"super_groups"`
	Summary     Summary          `json:"summary"`
}

// Board holds the user-controlled state around the pure aggregation core:
// sort criterion, view, window, per-level ordering and hidden groups.
// A Board is not safe for concurrent use.
type Board struct {
	criterion    SortCriterion
	view         View
	window       WindowSpec
	superOrder   OrderingState
	memberOrders map[string]OrderingState
	hidden       VisibilitySet

	// Effective orders of the last Derive, used by the Move operations.
	lastSuper   []string
	lastMembers map[string][]string
}

// NewBoard creates a criterion-ordered board.
func NewBoard(c SortCriterion, v View, window WindowSpec) *Board {
	return &Board{
		criterion:    c,
		view:         v,
		window:       window,
		superOrder:   CriterionOrdered{},
		memberOrders: make(map[string]OrderingState),
		hidden:       make(VisibilitySet),
		lastMembers:  make(map[string][]string),
	}
}

func (b *Board) Criterion() SortCriterion { return b.criterion }
func (b *Board) View() View               { return b.view }
func (b *Board) Window() WindowSpec       { return b.window }
func (b *Board) SuperOrder() OrderingState {
	return b.superOrder
}

// MemberOrder returns the member-level state of a SuperGroup.
func (b *Board) MemberOrder(superKey string) OrderingState {
	if s, ok := b.memberOrders[superKey]; ok {
		return s
	}
	return CriterionOrdered{}
}

// SetCriterion switches the criterion and drops every custom order.
func (b *Board) SetCriterion(c SortCriterion) {
	b.criterion = c
	b.ResetOrder()
}

// SetView switches between network and publisher keys. Member-level custom
// orders name sources of the old view, so they are dropped.
func (b *Board) SetView(v View) {
	if v == b.view {
		return
	}
	b.view = v
	b.memberOrders = make(map[string]OrderingState)
	b.lastMembers = make(map[string][]string)
}

// SetWindow changes the date window used for windowed metrics.
func (b *Board) SetWindow(w WindowSpec) {
	b.window = w
}

// ResetOrder returns both levels to criterion order.
func (b *Board) ResetOrder() {
	b.superOrder = CriterionOrdered{}
	b.memberOrders = make(map[string]OrderingState)
}

// ReorderSuperGroups records an explicit SuperGroup order.
func (b *Board) ReorderSuperGroups(keys []string) {
	b.superOrder = CustomOrdered{Keys: b.mergeStale(keys, b.superOrder)}
}

// ReorderMembers records an explicit member order for one SuperGroup.
func (b *Board) ReorderMembers(superKey string, sources []string) {
	b.memberOrders[superKey] = CustomOrdered{Keys: b.mergeStale(sources, b.MemberOrder(superKey))}
}

// MoveSuperGroup drags key to index in the last derived order.
func (b *Board) MoveSuperGroup(key string, index int) error {
	order, ok := moveKey(b.lastSuper, key, index)
	if !ok {
		return ErrUnknownKey
	}
	b.ReorderSuperGroups(order)
	b.lastSuper = order
	return nil
}

// MoveMember drags a member source to index within its SuperGroup.
func (b *Board) MoveMember(superKey, source string, index int) error {
	order, ok := moveKey(b.lastMembers[superKey], source, index)
	if !ok {
		return ErrUnknownKey
	}
	b.ReorderMembers(superKey, order)
	b.lastMembers[superKey] = order
	return nil
}

// mergeStale keeps keys from a previous custom order that the new order does
// not mention, so data that is temporarily absent keeps its place at the end.
func (b *Board) mergeStale(keys []string, prev OrderingState) []string {
	out := append([]string{}, keys...)
	if c, ok := prev.(CustomOrdered); ok {
		out = reconcileKeys(out, c.Keys)
	}
	return out
}

// Hide marks a Group key hidden.
func (b *Board) Hide(key string) { b.hidden[key] = struct{}{} }

// Show unhides a Group key.
func (b *Board) Show(key string) { delete(b.hidden, key) }

// SetHidden replaces the hidden set.
func (b *Board) SetHidden(keys []string) { b.hidden = NewVisibilitySet(keys...) }

// Hidden returns the hidden set.
func (b *Board) Hidden() VisibilitySet { return b.hidden }

// Derive runs the full pipeline over rows and returns the ordered view.
// Custom orders are reconciled with the current keys: existing positions are
// kept and new keys are appended.
func (b *Board) Derive(rows []models.RawRow) *BoardView {
	groups := BuildGroups(rows, b.view)
	AggregateAll(groups, b.window)
	sgs := BuildSuperGroups(groups)

	if c, ok := b.superOrder.(CustomOrdered); ok {
		present := make([]string, 0, len(sgs))
		for _, sg := range sgs {
			present = append(present, sg.Key.String())
		}
		b.superOrder = CustomOrdered{Keys: reconcileKeys(c.Keys, present)}
	}

	ordered := OrderSuperGroups(sgs, b.criterion, b.superOrder)
	_, superCustom := b.superOrder.(CustomOrdered)

	view := &BoardView{
		Criterion:   b.criterion,
		View:        b.view,
		Custom:      superCustom,
		SuperGroups: make([]SuperGroupView, 0, len(ordered)),
	}
	b.lastSuper = make([]string, 0, len(ordered))
	b.lastMembers = make(map[string][]string, len(ordered))

	visible := make([]*Group, 0, len(groups))
	for _, sg := range ordered {
		id := sg.Key.String()
		state := b.MemberOrder(id)
		if c, ok := state.(CustomOrdered); ok {
			byCriterion := OrderMembers(sg.Members, b.criterion, CriterionOrdered{})
			sources := make([]string, 0, len(byCriterion))
			for _, g := range byCriterion {
				sources = append(sources, g.Key.Source)
			}
			state = CustomOrdered{Keys: reconcileKeys(c.Keys, sources)}
			b.memberOrders[id] = state
		}
		members := OrderMembers(sg.Members, b.criterion, state)
		_, memberCustom := state.(CustomOrdered)

		sv := SuperGroupView{
			Key:     sg.Key,
			ID:      id,
			Value:   SuperGroupValue(sg, b.criterion),
			Custom:  memberCustom,
			Members: make([]GroupView, 0, len(members)),
		}
		sources := make([]string, 0, len(members))
		for _, g := range members {
			gid := g.Key.String()
			hidden := b.hidden.Hidden(gid)
			sv.Members = append(sv.Members, GroupView{
				Group:  g,
				ID:     gid,
				Value:  Value(g, b.criterion),
				Hidden: hidden,
			})
			sources = append(sources, g.Key.Source)
			if !hidden {
				visible = append(visible, g)
			}
		}

		view.SuperGroups = append(view.SuperGroups, sv)
		b.lastSuper = append(b.lastSuper, id)
		b.lastMembers[id] = sources
	}

	view.Summary = Summarize(visible)
	return view
}

// Snapshot converts the board to its persisted mirror. Settings are owned by
// the caller and left empty.
func (b *Board) Snapshot() models.BoardState {
	st := models.BoardState{
		Criterion:  string(b.criterion),
		View:       string(b.view),
		SuperOrder: snapshotOrdering(b.superOrder),
		Hidden:     b.hidden.Keys(),
		UpdatedAt:  time.Now().UTC(),
	}
	if len(b.memberOrders) > 0 {
		st.MemberOrders = make(map[string]models.OrderingSnapshot, len(b.memberOrders))
		for k, s := range b.memberOrders {
			if _, ok := s.(CustomOrdered); ok {
				st.MemberOrders[k] = snapshotOrdering(s)
			}
		}
	}
	return st
}

// RestoreBoard rebuilds a board from its persisted mirror. Unknown criterion
// or view names fall back to the given defaults.
func RestoreBoard(st models.BoardState, defaultCriterion SortCriterion, defaultView View, window WindowSpec) *Board {
	c, err := ParseSortCriterion(st.Criterion)
	if err != nil {
		c = defaultCriterion
	}
	v, err := ParseView(st.View)
	if err != nil || st.View == "" {
		v = defaultView
	}

	b := NewBoard(c, v, window)
	b.superOrder = restoreOrdering(st.SuperOrder)
	for k, s := range st.MemberOrders {
		if o, ok := restoreOrdering(s).(CustomOrdered); ok {
			b.memberOrders[k] = o
		}
	}
	b.hidden = NewVisibilitySet(st.Hidden...)
	return b
}

func snapshotOrdering(s OrderingState) models.OrderingSnapshot {
	if c, ok := s.(CustomOrdered); ok {
		return models.OrderingSnapshot{Mode: models.OrderModeCustom, Keys: append([]string(nil), c.Keys...)}
	}
	return models.OrderingSnapshot{Mode: models.OrderModeCriterion}
}

func restoreOrdering(s models.OrderingSnapshot) OrderingState {
	if s.Mode == models.OrderModeCustom {
		return CustomOrdered{Keys: append([]string(nil), s.Keys...)}
	}
	return CriterionOrdered{}
}
