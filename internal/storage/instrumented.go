package storage

import (
	"context"
	"errors"
	"time"

	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/models"
)

// InstrumentedRowStore records latency and failures of a RowStore.
type InstrumentedRowStore struct {
	next    RowStore
	name    string
	metrics *metrics.Metrics
}

func NewInstrumentedRowStore(next RowStore, name string, m *metrics.Metrics) *InstrumentedRowStore {
	return &InstrumentedRowStore{next: next, name: name, metrics: m}
}

func (s *InstrumentedRowStore) ListRows(ctx context.Context, filter models.RowFilter) ([]models.RawRow, error) {
	start := time.Now()
	rows, err := s.next.ListRows(ctx, filter)
	s.metrics.RecordStoreOp(s.name, "list_rows", time.Since(start), err)
	return rows, err
}

func (s *InstrumentedRowStore) UpsertRows(ctx context.Context, rows []models.RawRow) error {
	start := time.Now()
	err := s.next.UpsertRows(ctx, rows)
	s.metrics.RecordStoreOp(s.name, "upsert_rows", time.Since(start), err)
	if err == nil {
		s.metrics.RecordUpsert(len(rows))
	}
	return err
}

// InstrumentedStateStore records latency and failures of a StateStore.
// A missing state is not counted as a failure.
type InstrumentedStateStore struct {
	next    StateStore
	name    string
	metrics *metrics.Metrics
}

func NewInstrumentedStateStore(next StateStore, name string, m *metrics.Metrics) *InstrumentedStateStore {
	return &InstrumentedStateStore{next: next, name: name, metrics: m}
}

func (s *InstrumentedStateStore) LoadState(ctx context.Context, boardID string) (*models.BoardState, error) {
	start := time.Now()
	st, err := s.next.LoadState(ctx, boardID)
	recorded := err
	if errors.Is(err, ErrStateNotFound) {
		recorded = nil
	}
	s.metrics.RecordStoreOp(s.name, "load_state", time.Since(start), recorded)
	return st, err
}

func (s *InstrumentedStateStore) SaveState(ctx context.Context, boardID string, st *models.BoardState) error {
	start := time.Now()
	err := s.next.SaveState(ctx, boardID, st)
	s.metrics.RecordStoreOp(s.name, "save_state", time.Since(start), err)
	return err
}
