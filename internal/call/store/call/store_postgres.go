package call

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"convoca/internal/call/models"
	"convoca/internal/call/store"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/tx"
)

const callColumns = `id, slug, title, program_id, academic_year_id, call_type, modality,
	number_of_places, destinations, scoring_table, status, published_at, closed_at,
	created_by, updated_by, created_at, updated_at, deleted_at`

// PostgresStore persists calls in PostgreSQL. Pure I/O; guards and
// cascades belong to the service layer.
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

// q returns the context transaction when one is active so multi-entity
// mutations share a unit of work.
func (s *PostgresStore) q(ctx context.Context) queryer {
	if dbTx, ok := tx.From(ctx); ok {
		return dbTx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, call *models.Call) error {
	query := fmt.Sprintf(`INSERT INTO calls (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`, callColumns)
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(call.ID), call.Slug, call.Title, call.ProgramID, call.AcademicYearID,
		string(call.Type), string(call.Modality), call.NumberOfPlaces,
		pq.Array(call.Destinations), call.ScoringTable, string(call.Status),
		call.PublishedAt, call.ClosedAt, actorValue(call.CreatedBy), actorValue(call.UpdatedBy),
		call.CreatedAt, call.UpdatedAt, call.DeletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return dErrors.New(dErrors.CodeConflict, "call slug must be unique")
		}
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, callID id.CallID, scope store.Scope) (*models.Call, error) {
	query := fmt.Sprintf(`SELECT %s FROM calls WHERE id = $1`, callColumns)
	if scope == store.ScopeActive {
		query += ` AND deleted_at IS NULL`
	}
	call, err := scanCall(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(callID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find call: %w", err)
	}
	return call, nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Call, error) {
	query := fmt.Sprintf(`SELECT %s FROM calls WHERE slug = $1 AND deleted_at IS NULL`, callColumns)
	call, err := scanCall(s.q(ctx).QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find call by slug: %w", err)
	}
	return call, nil
}

func (s *PostgresStore) List(ctx context.Context, filter store.CallFilter) ([]*models.Call, error) {
	var conds []string
	var args []any
	if !filter.IncludeTrashed {
		conds = append(conds, "deleted_at IS NULL")
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AcademicYearID != nil {
		args = append(args, *filter.AcademicYearID)
		conds = append(conds, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM calls`, callColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []*models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, call *models.Call) error {
	query := `
		UPDATE calls SET slug = $2, title = $3, program_id = $4, academic_year_id = $5,
			call_type = $6, modality = $7, number_of_places = $8, destinations = $9,
			scoring_table = $10, status = $11, published_at = $12, closed_at = $13,
			updated_by = $14, updated_at = $15
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(call.ID), call.Slug, call.Title, call.ProgramID, call.AcademicYearID,
		string(call.Type), string(call.Modality), call.NumberOfPlaces,
		pq.Array(call.Destinations), call.ScoringTable, string(call.Status),
		call.PublishedAt, call.ClosedAt, actorValue(call.UpdatedBy), call.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	return requireRow(res)
}

// Lock takes a row lock on the call, serializing every writer that
// touches the call's phase set. Must run inside a transaction.
func (s *PostgresStore) Lock(ctx context.Context, callID id.CallID) error {
	var found uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM calls WHERE id = $1 FOR UPDATE`, uuid.UUID(callID)).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("lock call: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkTrashed(ctx context.Context, callID id.CallID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE calls SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		uuid.UUID(callID), at)
	if err != nil {
		return fmt.Errorf("trash call: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Restore(ctx context.Context, callID id.CallID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE calls SET deleted_at = NULL WHERE id = $1`, uuid.UUID(callID))
	if err != nil {
		return fmt.Errorf("restore call: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, callID id.CallID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, uuid.UUID(callID))
	if err != nil {
		return fmt.Errorf("delete call: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DetachActor(ctx context.Context, actorID id.ActorID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE calls SET
			created_by = CASE WHEN created_by = $1 THEN NULL ELSE created_by END,
			updated_by = CASE WHEN updated_by = $1 THEN NULL ELSE updated_by END
		WHERE created_by = $1 OR updated_by = $1
	`, uuid.UUID(actorID))
	if err != nil {
		return 0, fmt.Errorf("detach actor from calls: %w", err)
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

func actorValue(actor *id.ActorID) any {
	if actor == nil {
		return nil
	}
	return uuid.UUID(*actor)
}

type callRow interface {
	Scan(dest ...any) error
}

func scanCall(row callRow) (*models.Call, error) {
	var (
		call         models.Call
		callID       uuid.UUID
		academicYear sql.NullString
		callType     string
		modality     string
		status       string
		destinations pq.StringArray
		createdBy    uuid.NullUUID
		updatedBy    uuid.NullUUID
		publishedAt  sql.NullTime
		closedAt     sql.NullTime
		deletedAt    sql.NullTime
	)
	err := row.Scan(&callID, &call.Slug, &call.Title, &call.ProgramID, &academicYear,
		&callType, &modality, &call.NumberOfPlaces, &destinations, &call.ScoringTable,
		&status, &publishedAt, &closedAt, &createdBy, &updatedBy,
		&call.CreatedAt, &call.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	call.ID = id.CallID(callID)
	call.Type = models.CallType(callType)
	call.Modality = models.Modality(modality)
	call.Status = models.CallStatus(status)
	call.Destinations = destinations
	if academicYear.Valid {
		call.AcademicYearID = &academicYear.String
	}
	if publishedAt.Valid {
		call.PublishedAt = &publishedAt.Time
	}
	if closedAt.Valid {
		call.ClosedAt = &closedAt.Time
	}
	if createdBy.Valid {
		actor := id.ActorID(createdBy.UUID)
		call.CreatedBy = &actor
	}
	if updatedBy.Valid {
		actor := id.ActorID(updatedBy.UUID)
		call.UpdatedBy = &actor
	}
	if deletedAt.Valid {
		call.DeletedAt = &deletedAt.Time
	}
	return &call, nil
}
