package phase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
	"convoca/pkg/platform/tx"
)

const phaseColumns = `id, call_id, phase_type, name, description, start_date, end_date,
	phase_order, is_current, created_at, updated_at, deleted_at`

// PostgresStore persists phases in PostgreSQL. Multi-row invariants
// (current-phase swap, order swap) are single statements or run under the
// caller's transaction holding the call row lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) queryer {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, phase *models.Phase) error {
	query := fmt.Sprintf(`INSERT INTO call_phases (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, phaseColumns)
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(phase.ID), uuid.UUID(phase.CallID), string(phase.Type), phase.Name,
		phase.Description, phase.StartDate, phase.EndDate, phase.Order, phase.IsCurrent,
		phase.CreatedAt, phase.UpdatedAt, phase.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("create phase: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, phaseID id.PhaseID, scope store.Scope) (*models.Phase, error) {
	query := fmt.Sprintf(`SELECT %s FROM call_phases WHERE id = $1`, phaseColumns)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	phase, err := scanPhase(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(phaseID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find phase: %w", err)
	}
	return phase, nil
}

func (s *PostgresStore) ListByCall(ctx context.Context, callID id.CallID, scope store.Scope) ([]*models.Phase, error) {
	query := fmt.Sprintf(`SELECT %s FROM call_phases WHERE call_id = $1`, phaseColumns)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY phase_order`

	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(callID))
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	defer rows.Close()

	var out []*models.Phase
	for rows.Next() {
		phase, err := scanPhase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}
		out = append(out, phase)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MaxOrder(ctx context.Context, callID id.CallID) (int, error) {
	var max int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(phase_order), 0) FROM call_phases WHERE call_id = $1 AND deleted_at IS NULL`,
		uuid.UUID(callID)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max phase order: %w", err)
	}
	return max, nil
}

func (s *PostgresStore) Update(ctx context.Context, phase *models.Phase) error {
	query := `
		UPDATE call_phases SET phase_type = $2, name = $3, description = $4,
			start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(phase.ID), string(phase.Type), phase.Name, phase.Description,
		phase.StartDate, phase.EndDate, phase.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return requireRow(res)
}

// SwapOrder exchanges the two order values in one statement so no reader
// ever observes a half-applied swap.
func (s *PostgresStore) SwapOrder(ctx context.Context, a, b *models.Phase, at time.Time) error {
	query := `
		UPDATE call_phases SET
			phase_order = CASE id WHEN $1 THEN $3 WHEN $2 THEN $4 END,
			updated_at = $5
		WHERE id IN ($1, $2) AND deleted_at IS NULL
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(b.ID), b.Order, a.Order, at)
	if err != nil {
		return fmt.Errorf("swap phase order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 2 {
		return store.ErrNotFound
	}
	return nil
}

// SetCurrent enforces the single-current invariant: both updates run in
// the caller's transaction under the call row lock.
func (s *PostgresStore) SetCurrent(ctx context.Context, callID id.CallID, phaseID id.PhaseID, at time.Time) error {
	q := s.q(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE call_phases SET is_current = FALSE, updated_at = $3
		WHERE call_id = $1 AND id <> $2 AND is_current AND deleted_at IS NULL
	`, uuid.UUID(callID), uuid.UUID(phaseID), at)
	if err != nil {
		return fmt.Errorf("clear current phases: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE call_phases SET is_current = TRUE, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, uuid.UUID(phaseID), at)
	if err != nil {
		return fmt.Errorf("set current phase: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ClearCurrent(ctx context.Context, phaseID id.PhaseID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_phases SET is_current = FALSE, updated_at = $2 WHERE id = $1`,
		uuid.UUID(phaseID), at)
	if err != nil {
		return fmt.Errorf("clear current phase: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) MarkTrashed(ctx context.Context, phaseID id.PhaseID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_phases SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		uuid.UUID(phaseID), at)
	if err != nil {
		return fmt.Errorf("trash phase: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Restore(ctx context.Context, phaseID id.PhaseID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_phases SET deleted_at = NULL WHERE id = $1`, uuid.UUID(phaseID))
	if err != nil {
		return fmt.Errorf("restore phase: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, phaseID id.PhaseID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM call_phases WHERE id = $1`, uuid.UUID(phaseID))
	if err != nil {
		return fmt.Errorf("delete phase: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteByCall(ctx context.Context, callID id.CallID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM call_phases WHERE call_id = $1`, uuid.UUID(callID))
	if err != nil {
		return 0, fmt.Errorf("delete phases by call: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) CountByCall(ctx context.Context, callID id.CallID, scope store.Scope) (int, error) {
	query := `SELECT COUNT(*) FROM call_phases WHERE call_id = $1`
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	var count int
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(callID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count phases: %w", err)
	}
	return count, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type phaseRow interface {
	Scan(dest ...any) error
}

func scanPhase(row phaseRow) (*models.Phase, error) {
	var (
		phase     models.Phase
		phaseID   uuid.UUID
		callID    uuid.UUID
		phaseType string
		startDate sql.NullTime
		endDate   sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(&phaseID, &callID, &phaseType, &phase.Name, &phase.Description,
		&startDate, &endDate, &phase.Order, &phase.IsCurrent,
		&phase.CreatedAt, &phase.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	phase.ID = id.PhaseID(phaseID)
	phase.CallID = id.CallID(callID)
	phase.Type = models.PhaseType(phaseType)
	if startDate.Valid {
		phase.StartDate = &startDate.Time
	}
	if endDate.Valid {
		phase.EndDate = &endDate.Time
	}
	if deletedAt.Valid {
		phase.DeletedAt = &deletedAt.Time
	}
	return &phase, nil
}
