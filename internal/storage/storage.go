package storage

import (
	"context"
	"sync"

	"github.com/radiusdt/roas-board/internal/models"
)

// =============================================
// IN-MEMORY ROW STORE
// =============================================

// InMemoryRowStore keeps rows in a map keyed by (app, network, publisher, date).
type InMemoryRowStore struct {
	mu   sync.RWMutex
	rows map[rowKey]models.RawRow
}

func NewInMemoryRowStore() *InMemoryRowStore {
	return &InMemoryRowStore{rows: make(map[rowKey]models.RawRow)}
}

func (s *InMemoryRowStore) ListRows(ctx context.Context, filter models.RowFilter) ([]models.RawRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RawRow, 0, len(s.rows))
	for _, r := range s.rows {
		if matchesFilter(r, filter) {
			out = append(out, copyRow(r))
		}
	}
	sortRows(out)
	return out, nil
}

func (s *InMemoryRowStore) UpsertRows(ctx context.Context, rows []models.RawRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		s.rows[keyOf(r)] = copyRow(r)
	}
	return nil
}

func copyRow(r models.RawRow) models.RawRow {
	if r.Roas != nil {
		roas := make(map[int]float64, len(r.Roas))
		for k, v := range r.Roas {
			roas[k] = v
		}
		r.Roas = roas
	}
	return r
}

// =============================================
// IN-MEMORY STATE STORE
// =============================================

// InMemoryStateStore keeps encoded board states so callers never share
// slices or maps with the store.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{states: make(map[string][]byte)}
}

func (s *InMemoryStateStore) LoadState(ctx context.Context, boardID string) (*models.BoardState, error) {
	s.mu.RLock()
	data, ok := s.states[boardID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrStateNotFound
	}
	return decodeState(data)
}

func (s *InMemoryStateStore) SaveState(ctx context.Context, boardID string, st *models.BoardState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.states[boardID] = data
	s.mu.Unlock()
	return nil
}
