package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radiusdt/roas-board/internal/analytics"
	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/models"
	"github.com/radiusdt/roas-board/internal/presenter"
	"github.com/radiusdt/roas-board/internal/storage"
)

var (
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrInvalidArgument is returned for unknown criterion, view or move level names.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownSuperGroup is returned when a member operation names a
	// SuperGroup that is not on the board.
	ErrUnknownSuperGroup = errors.New("unknown super group")

	// ErrUnknownKey is returned when a move names a key that is not on the board.
	ErrUnknownKey = analytics.ErrUnknownKey
)

// Move levels.
const (
	LevelSuperGroup = "supergroup"
	LevelMember     = "member"
)

// Defaults is what a board that has never been saved starts from.
type Defaults struct {
	Criterion      analytics.SortCriterion
	View           analytics.View
	TrailingDays   int
	VisibleColumns []string
}

// Query narrows a read. View, when set, previews the board in that view
// without persisting it.
type Query struct {
	View string
	Apps []string
}

// MoveRequest drags one key to a new index in the last derived order.
// When Apps is set, Index refers to the board filtered to those apps.
type MoveRequest struct {
	Level    string   `json:"level" validate:"required,oneof=supergroup member"`
	SuperKey string   `json:"super_key,omitempty" validate:"required_if=Level member"`
	Key      string   `json:"key" validate:"required"`
	Index    int      `json:"index" validate:"gte=0"`
	Apps     []string `json:"apps,omitempty"`
}

// Result is a derived board together with the settings it was derived with.
type Result struct {
	Board    *analytics.BoardView `json:"board"`
	Settings models.Settings      `json:"settings"`
}

// Service loads board state, derives boards from the row source, applies
// user operations and persists the result. Mutations on the same board are
// serialized.
type Service struct {
	rows     storage.RowStore
	states   storage.StateStore
	defaults Defaults
	logger   *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a dashboard service. m may be nil.
func NewService(rows storage.RowStore, states storage.StateStore, defaults Defaults, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Criterion == "" {
		defaults.Criterion = analytics.SortVolume
	}
	if defaults.View == "" {
		defaults.View = analytics.ViewNetwork
	}
	if defaults.TrailingDays <= 0 {
		defaults.TrailingDays = analytics.DefaultTrailingDays
	}
	return &Service{
		rows:     rows,
		states:   states,
		defaults: defaults,
		logger:   logger,
		metrics:  m,
		validate: validator.New(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// =============================================
// READS
// =============================================

// GetBoard derives the board.
func (s *Service) GetBoard(ctx context.Context, boardID string, q Query) (*Result, error) {
	sess, err := s.open(ctx, boardID, q.Apps)
	if err != nil {
		return nil, err
	}
	if q.View != "" {
		v, err := analytics.ParseView(q.View)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if v != sess.board.View() {
			sess.board.SetView(v)
		}
	}
	return sess.result(s.derive(sess)), nil
}

// Table derives the board and renders it for display.
func (s *Service) Table(ctx context.Context, boardID string, q Query) (*presenter.Table, error) {
	res, err := s.GetBoard(ctx, boardID, q)
	if err != nil {
		return nil, err
	}
	t, err := presenter.Build(res.Board, res.Settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return t, nil
}

// ExportXLSX writes the rendered board as a workbook.
func (s *Service) ExportXLSX(ctx context.Context, boardID string, q Query, w io.Writer) error {
	t, err := s.Table(ctx, boardID, q)
	if err != nil {
		return err
	}
	if err := presenter.WriteXLSX(w, t); err != nil {
		return fmt.Errorf("failed to export board %s: %w", boardID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordExport("xlsx")
	}
	return nil
}

// =============================================
// MUTATIONS
// =============================================

// SetCriterion switches the sort criterion and drops every custom order.
func (s *Service) SetCriterion(ctx context.Context, boardID, criterion string) (*Result, error) {
	c, err := analytics.ParseSortCriterion(criterion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.mutate(ctx, boardID, "criterion", func(sess *session, _ *analytics.BoardView) error {
		sess.board.SetCriterion(c)
		return nil
	})
}

// SetView switches between the network and publisher views.
func (s *Service) SetView(ctx context.Context, boardID, view string) (*Result, error) {
	v, err := analytics.ParseView(view)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.mutate(ctx, boardID, "view", func(sess *session, _ *analytics.BoardView) error {
		if v != sess.board.View() {
			sess.board.SetView(v)
		}
		return nil
	})
}

// UpdateSettings validates and replaces the board settings.
func (s *Service) UpdateSettings(ctx context.Context, boardID string, settings models.Settings) (*Result, error) {
	if err := s.validateSettings(settings); err != nil {
		if s.metrics != nil {
			s.metrics.RecordSettingsReject()
		}
		return nil, err
	}
	return s.mutate(ctx, boardID, "settings", func(sess *session, _ *analytics.BoardView) error {
		sess.settings = settings
		sess.board.SetWindow(analytics.NewWindowSpec(settings.DateRange, s.defaults.TrailingDays))
		return nil
	})
}

// SetHidden replaces the set of hidden Group keys.
func (s *Service) SetHidden(ctx context.Context, boardID string, keys []string) (*Result, error) {
	return s.mutate(ctx, boardID, "hidden", func(sess *session, _ *analytics.BoardView) error {
		sess.board.SetHidden(keys)
		return nil
	})
}

// ReorderSuperGroups stores an explicit SuperGroup order.
func (s *Service) ReorderSuperGroups(ctx context.Context, boardID string, keys []string) (*Result, error) {
	return s.mutate(ctx, boardID, "reorder_supergroups", func(sess *session, _ *analytics.BoardView) error {
		sess.board.ReorderSuperGroups(keys)
		return nil
	})
}

// ReorderMembers stores an explicit member order for one SuperGroup.
func (s *Service) ReorderMembers(ctx context.Context, boardID, superKey string, sources []string) (*Result, error) {
	return s.mutate(ctx, boardID, "reorder_members", func(sess *session, view *analytics.BoardView) error {
		if !hasSuperGroup(view, superKey) {
			return fmt.Errorf("%w: %s", ErrUnknownSuperGroup, superKey)
		}
		sess.board.ReorderMembers(superKey, sources)
		return nil
	})
}

// Move drags a SuperGroup or a member to a new position.
func (s *Service) Move(ctx context.Context, boardID string, req MoveRequest) (*Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.mutate(ctx, boardID, "move_"+req.Level, func(sess *session, view *analytics.BoardView) error {
		if req.Level == LevelMember && !hasSuperGroup(view, req.SuperKey) {
			return fmt.Errorf("%w: %s", ErrUnknownSuperGroup, req.SuperKey)
		}
		index := req.Index
		if len(req.Apps) > 0 {
			var err error
			if index, err = s.unfilteredIndex(ctx, sess, view, req); err != nil {
				return err
			}
		}

		var err error
		if req.Level == LevelSuperGroup {
			err = sess.board.MoveSuperGroup(req.Key, index)
		} else {
			err = sess.board.MoveMember(req.SuperKey, req.Key, index)
		}
		if err != nil {
			return fmt.Errorf("%w: %s", err, req.Key)
		}
		return nil
	})
}

// unfilteredIndex translates a move index picked on the app-filtered board
// into the full board order.
func (s *Service) unfilteredIndex(ctx context.Context, sess *session, full *analytics.BoardView, req MoveRequest) (int, error) {
	rows, err := s.rows.ListRows(ctx, models.RowFilter{Apps: req.Apps})
	if err != nil {
		return 0, fmt.Errorf("failed to list rows: %w", err)
	}
	shadow := analytics.RestoreBoard(sess.board.Snapshot(), s.defaults.Criterion, s.defaults.View, sess.board.Window())
	filtered := shadow.Derive(rows)

	subset, order := viewSuperIDs(filtered), viewSuperIDs(full)
	if req.Level == LevelMember {
		subset, order = viewMemberSources(filtered, req.SuperKey), viewMemberSources(full, req.SuperKey)
	}
	index, ok := analytics.TranslateIndex(subset, order, req.Key, req.Index)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKey, req.Key)
	}
	return index, nil
}

// ResetOrder returns every level to criterion order.
func (s *Service) ResetOrder(ctx context.Context, boardID string) (*Result, error) {
	return s.mutate(ctx, boardID, "reset", func(sess *session, _ *analytics.BoardView) error {
		sess.board.ResetOrder()
		return nil
	})
}

// UpsertRows writes raw rows to the row source and returns how many were accepted.
func (s *Service) UpsertRows(ctx context.Context, rows []models.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	unknown := make(map[string]int)
	for _, r := range rows {
		for _, f := range analytics.Normalize(r).Unknown {
			unknown[f]++
			if s.metrics != nil {
				s.metrics.RecordUnknownField(f)
			}
		}
	}
	if err := s.rows.UpsertRows(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to upsert rows: %w", err)
	}

	fields := []zap.Field{zap.Int("rows", len(rows))}
	if len(unknown) > 0 {
		fields = append(fields, zap.Any("unknown_fields", unknown))
	}
	s.logger.Info("rows upserted", fields...)
	return len(rows), nil
}

// =============================================
// INTERNALS
// =============================================

type session struct {
	id       string
	board    *analytics.Board
	settings models.Settings
	rows     []models.RawRow
}

func (sess *session) result(view *analytics.BoardView) *Result {
	return &Result{Board: view, Settings: sess.settings}
}

// open loads the persisted state of a board, or the defaults when it has
// never been saved, and fetches the rows it is derived from.
func (s *Service) open(ctx context.Context, boardID string, apps []string) (*session, error) {
	st, err := s.states.LoadState(ctx, boardID)
	switch {
	case errors.Is(err, storage.ErrStateNotFound):
		st = &models.BoardState{Settings: models.Settings{
			VisibleColumns: append([]string(nil), s.defaults.VisibleColumns...),
		}}
	case err != nil:
		return nil, fmt.Errorf("failed to load board %s: %w", boardID, err)
	}

	window := analytics.NewWindowSpec(st.Settings.DateRange, s.defaults.TrailingDays)
	board := analytics.RestoreBoard(*st, s.defaults.Criterion, s.defaults.View, window)

	rows, err := s.rows.ListRows(ctx, models.RowFilter{Apps: apps})
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	return &session{id: boardID, board: board, settings: st.Settings, rows: rows}, nil
}

func (s *Service) derive(sess *session) *analytics.BoardView {
	start := time.Now()
	view := sess.board.Derive(sess.rows)
	if s.metrics != nil {
		groups := 0
		for _, sg := range view.SuperGroups {
			groups += len(sg.Members)
		}
		s.metrics.RecordDerive(string(view.Criterion), string(view.View), len(sess.rows), groups, len(view.SuperGroups), time.Since(start))
	}
	return view
}

// mutate runs load, derive, fn, derive, save under the board lock. fn sees
// the view derived before the change so drag operations act on what the
// user saw.
func (s *Service) mutate(ctx context.Context, boardID, action string, fn func(*session, *analytics.BoardView) error) (*Result, error) {
	unlock := s.lock(boardID)
	defer unlock()

	sess, err := s.open(ctx, boardID, nil)
	if err != nil {
		return nil, err
	}
	if err := fn(sess, s.derive(sess)); err != nil {
		return nil, err
	}
	view := s.derive(sess)

	st := sess.board.Snapshot()
	st.Settings = sess.settings
	if err := s.states.SaveState(ctx, boardID, &st); err != nil {
		return nil, fmt.Errorf("failed to save board %s: %w", boardID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderChange(orderLevel(action), action)
	}
	s.logger.Debug("board updated",
		zap.String("board_id", boardID),
		zap.String("action", action),
		zap.String("criterion", string(view.Criterion)),
		zap.Bool("custom_order", view.Custom),
	)
	return sess.result(view), nil
}

func (s *Service) lock(boardID string) func() {
	s.mu.Lock()
	l, ok := s.locks[boardID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[boardID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) validateSettings(settings models.Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if r := settings.DateRange; !r.IsZero() && r.Start != "" && r.End != "" && r.Start > r.End {
		return fmt.Errorf("%w: date range start %s is after end %s", ErrInvalidSettings, r.Start, r.End)
	}
	if _, err := presenter.ResolveColumns(settings.VisibleColumns); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := presenter.ValidateRuleColumns(settings.FormattingRules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

func viewSuperIDs(view *analytics.BoardView) []string {
	out := make([]string, len(view.SuperGroups))
	for i, sg := range view.SuperGroups {
		out[i] = sg.ID
	}
	return out
}

func viewMemberSources(view *analytics.BoardView, superKey string) []string {
	for _, sg := range view.SuperGroups {
		if sg.ID != superKey {
			continue
		}
		out := make([]string, len(sg.Members))
		for i, m := range sg.Members {
			out[i] = m.Key.Source
		}
		return out
	}
	return nil
}

func hasSuperGroup(view *analytics.BoardView, key string) bool {
	for _, sg := range view.SuperGroups {
		if sg.ID == key {
			return true
		}
	}
	return false
}

func orderLevel(action string) string {
	switch action {
	case "reorder_supergroups", "move_" + LevelSuperGroup:
		return LevelSuperGroup
	case "reorder_members", "move_" + LevelMember:
		return LevelMember
	}
	return "board"
}
