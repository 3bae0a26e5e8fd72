package models

import "time"

// ===========================================
// PERSISTED BOARD STATE
// ===========================================

// Ordering modes as persisted.
const (
	OrderModeCriterion = "criterion"
	OrderModeCustom    = "custom"
)

// OrderingSnapshot is the JSON mirror of an ordering state.
// Keys is only meaningful when Mode is OrderModeCustom.
type OrderingSnapshot struct {
	Mode string   `json:"mode"`
	Keys []string `json:"keys,omitempty"`
}

// BoardState is everything a store needs to restore a user's board.
type BoardState struct {
	Criterion    string                      `json:"criterion"`
	View         string                      `json:"view"`
	SuperOrder   OrderingSnapshot            `json:"super_order"`
	MemberOrders map[string]OrderingSnapshot `json:"member_orders,omitempty"`
	Hidden       []string                    `json:"hidden,omitempty"`
	Settings     Settings                    `json:"settings"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}
