package resolution

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

const resolutionColumns = `id, call_id, call_phase_id, resolution_type, title, description,
	evaluation_procedure, official_date, published_at, created_by, created_at, updated_at, deleted_at`

// PostgresStore persists resolutions in PostgreSQL.
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

func (s *PostgresStore) Create(ctx context.Context, resolution *models.Resolution) error {
	query := fmt.Sprintf(`INSERT INTO call_resolutions (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, resolutionColumns)
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(resolution.ID), uuid.UUID(resolution.CallID), uuid.UUID(resolution.PhaseID),
		string(resolution.Type), resolution.Title, resolution.Description,
		resolution.EvaluationProcedure, resolution.OfficialDate, resolution.PublishedAt,
		actorValue(resolution.CreatedBy), resolution.CreatedAt, resolution.UpdatedAt, resolution.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("create resolution: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, resolutionID id.ResolutionID, scope store.Scope) (*models.Resolution, error) {
	query := fmt.Sprintf(`SELECT %s FROM call_resolutions WHERE id = $1`, resolutionColumns)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	resolution, err := scanResolution(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(resolutionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find resolution: %w", err)
	}
	return resolution, nil
}

func (s *PostgresStore) ListByCall(ctx context.Context, callID id.CallID, scope store.Scope) ([]*models.Resolution, error) {
	return s.list(ctx, `call_id`, uuid.UUID(callID), scope)
}

func (s *PostgresStore) ListByPhase(ctx context.Context, phaseID id.PhaseID, scope store.Scope) ([]*models.Resolution, error) {
	return s.list(ctx, `call_phase_id`, uuid.UUID(phaseID), scope)
}

func (s *PostgresStore) list(ctx context.Context, column string, owner uuid.UUID, scope store.Scope) ([]*models.Resolution, error) {
	query := fmt.Sprintf(`SELECT %s FROM call_resolutions WHERE %s = $1`, resolutionColumns, column)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY official_date`

	rows, err := s.q(ctx).QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var out []*models.Resolution
	for rows.Next() {
		resolution, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, resolution)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, resolution *models.Resolution) error {
	query := `
		UPDATE call_resolutions SET resolution_type = $2, title = $3, description = $4,
			evaluation_procedure = $5, official_date = $6, published_at = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(resolution.ID), string(resolution.Type), resolution.Title,
		resolution.Description, resolution.EvaluationProcedure, resolution.OfficialDate,
		resolution.PublishedAt, resolution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update resolution: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) MarkTrashed(ctx context.Context, resolutionID id.ResolutionID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_resolutions SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		uuid.UUID(resolutionID), at)
	if err != nil {
		return fmt.Errorf("trash resolution: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Restore(ctx context.Context, resolutionID id.ResolutionID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_resolutions SET deleted_at = NULL WHERE id = $1`, uuid.UUID(resolutionID))
	if err != nil {
		return fmt.Errorf("restore resolution: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, resolutionID id.ResolutionID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM call_resolutions WHERE id = $1`, uuid.UUID(resolutionID))
	if err != nil {
		return fmt.Errorf("delete resolution: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteByCall(ctx context.Context, callID id.CallID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM call_resolutions WHERE call_id = $1`, uuid.UUID(callID))
	if err != nil {
		return 0, fmt.Errorf("delete resolutions by call: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) DeleteByPhase(ctx context.Context, phaseID id.PhaseID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM call_resolutions WHERE call_phase_id = $1`, uuid.UUID(phaseID))
	if err != nil {
		return 0, fmt.Errorf("delete resolutions by phase: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) CountByCall(ctx context.Context, callID id.CallID, scope store.Scope) (int, error) {
	return s.count(ctx, `call_id`, uuid.UUID(callID), scope)
}

func (s *PostgresStore) CountByPhase(ctx context.Context, phaseID id.PhaseID, scope store.Scope) (int, error) {
	return s.count(ctx, `call_phase_id`, uuid.UUID(phaseID), scope)
}

func (s *PostgresStore) count(ctx context.Context, column string, owner uuid.UUID, scope store.Scope) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM call_resolutions WHERE %s = $1`, column)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	var count int
	if err := s.q(ctx).QueryRowContext(ctx, query, owner).Scan(&count); err != nil {
		return 0, fmt.Errorf("count resolutions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DetachActor(ctx context.Context, actorID id.ActorID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE call_resolutions SET created_by = NULL WHERE created_by = $1`, uuid.UUID(actorID))
	if err != nil {
		return 0, fmt.Errorf("detach actor from resolutions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
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

type resolutionRow interface {
	Scan(dest ...any) error
}

func scanResolution(row resolutionRow) (*models.Resolution, error) {
	var (
		resolution     models.Resolution
		resolutionID   uuid.UUID
		callID         uuid.UUID
		phaseID        uuid.UUID
		resolutionType string
		publishedAt    sql.NullTime
		createdBy      uuid.NullUUID
		deletedAt      sql.NullTime
	)
	err := row.Scan(&resolutionID, &callID, &phaseID, &resolutionType, &resolution.Title,
		&resolution.Description, &resolution.EvaluationProcedure, &resolution.OfficialDate,
		&publishedAt, &createdBy, &resolution.CreatedAt, &resolution.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	resolution.ID = id.ResolutionID(resolutionID)
	resolution.CallID = id.CallID(callID)
	resolution.PhaseID = id.PhaseID(phaseID)
	resolution.Type = models.ResolutionType(resolutionType)
	if publishedAt.Valid {
		resolution.PublishedAt = &publishedAt.Time
	}
	if createdBy.Valid {
		actor := id.ActorID(createdBy.UUID)
		resolution.CreatedBy = &actor
	}
	if deletedAt.Valid {
		resolution.DeletedAt = &deletedAt.Time
	}
	return &resolution, nil
}

func actorValue(actor *id.ActorID) any {
	if actor == nil {
		return nil
	}
	return uuid.UUID(*actor)
}
