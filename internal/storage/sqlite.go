package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/radiusdt/roas-board/internal/models"
)

// SQLiteStateStore keeps board states in a local SQLite file, for single-node
// deployments without Redis or Postgres. The schema comes from
// database.OpenSQLite.
type SQLiteStateStore struct {
	db *sql.DB
}

func NewSQLiteStateStore(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db}
}

func (s *SQLiteStateStore) LoadState(ctx context.Context, boardID string) (*models.BoardState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM board_states WHERE board_id = ?`, boardID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load board state: %w", err)
	}
	return decodeState([]byte(data))
}

func (s *SQLiteStateStore) SaveState(ctx context.Context, boardID string, st *models.BoardState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO board_states (board_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(board_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		boardID, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save board state: %w", err)
	}
	return nil
}
