package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radiusdt/roas-board/internal/models"
)

// =============================================
// POSTGRES ROW STORE
// =============================================

// PostgresRowStore implements RowStore on the cohort_rows table.
type PostgresRowStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRowStore(pool *pgxpool.Pool) *PostgresRowStore {
	return &PostgresRowStore{pool: pool}
}

func (r *PostgresRowStore) ListRows(ctx context.Context, filter models.RowFilter) ([]models.RawRow, error) {
	query, args := buildRowQuery(filter, pgPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	out := make([]models.RawRow, 0)
	for rows.Next() {
		var row models.RawRow
		var roasJSON []byte
		if err := rows.Scan(
			&row.App, &row.Network, &row.Publisher, &row.Date,
			&row.Installs, &row.Cost, &row.Revenue, &roasJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if row.Roas, err = decodeRoas(roasJSON); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	// Date bounds are applied here so unparseable dates behave the same
	// as in the other stores.
	if filter.StartDate != "" || filter.EndDate != "" {
		kept := out[:0]
		for _, row := range out {
			if matchesFilter(row, models.RowFilter{StartDate: filter.StartDate, EndDate: filter.EndDate}) {
				kept = append(kept, row)
			}
		}
		out = kept
	}
	return out, nil
}

func (r *PostgresRowStore) UpsertRows(ctx context.Context, rows []models.RawRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		roasJSON, err := encodeRoas(row.Roas)
		if err != nil {
			return fmt.Errorf("failed to encode roas: %w", err)
		}
		batch.Queue(`
			INSERT INTO cohort_rows (app, network, publisher, day, installs, cost, revenue, roas, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (app, network, publisher, day) DO UPDATE SET
				installs = EXCLUDED.installs,
				cost = EXCLUDED.cost,
				revenue = EXCLUDED.revenue,
				roas = EXCLUDED.roas,
				updated_at = EXCLUDED.updated_at
		`, row.App, row.Network, row.Publisher, row.Date, row.Installs, row.Cost, row.Revenue, roasJSON)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert rows: %w", err)
	}
	return tx.Commit(ctx)
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildRowQuery renders the row listing query with an optional app filter.
// Date bounds are left to matchesFilter.
func buildRowQuery(filter models.RowFilter, placeholder func(int) string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT app, network, publisher, day, installs, cost, revenue, roas FROM cohort_rows`)

	args := make([]any, 0, len(filter.Apps))
	if len(filter.Apps) > 0 {
		marks := make([]string, len(filter.Apps))
		for i, app := range filter.Apps {
			args = append(args, app)
			marks[i] = placeholder(i + 1)
		}
		sb.WriteString(" WHERE app IN (")
		sb.WriteString(strings.Join(marks, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(" ORDER BY day, app, network, publisher")
	return sb.String(), args
}

// =============================================
// POSTGRES STATE STORE
// =============================================

// PostgresStateStore keeps board states as jsonb in board_states.
type PostgresStateStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStateStore(pool *pgxpool.Pool) *PostgresStateStore {
	return &PostgresStateStore{pool: pool}
}

func (s *PostgresStateStore) LoadState(ctx context.Context, boardID string) (*models.BoardState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM board_states WHERE board_id = $1`, boardID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load board state: %w", err)
	}
	return decodeState(data)
}

func (s *PostgresStateStore) SaveState(ctx context.Context, boardID string, st *models.BoardState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO board_states (board_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (board_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, boardID, data)
	if err != nil {
		return fmt.Errorf("failed to save board state: %w", err)
	}
	return nil
}
