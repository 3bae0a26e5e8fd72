package storage

import (
	"context"
	"errors"

	"github.com/radiusdt/roas-board/internal/models"
)

var (
	// ErrStateNotFound is returned by LoadState when a board has never been saved.
	ErrStateNotFound = errors.New("board state not found")

	// ErrReadOnly is returned by row sources that cannot accept writes.
	ErrReadOnly = errors.New("row store is read-only")
)

// =============================================
// ROW SOURCE
// =============================================

// RowStore provides the raw campaign-day rows the board is derived from.
// Rows are unique on (app, network, publisher, date); an upsert of an
// existing key replaces it.
type RowStore interface {
	ListRows(ctx context.Context, filter models.RowFilter) ([]models.RawRow, error)
	UpsertRows(ctx context.Context, rows []models.RawRow) error
}

// =============================================
// BOARD STATE
// =============================================

// StateStore persists the ordering, visibility and settings of each board.
type StateStore interface {
	LoadState(ctx context.Context, boardID string) (*models.BoardState, error)
	SaveState(ctx context.Context, boardID string, st *models.BoardState) error
}
