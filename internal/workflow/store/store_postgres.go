package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"examflow/internal/workflow/models"
	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	txcontext "examflow/pkg/platform/tx"
)

// PostgresStore persists documents. Writes join the caller's transaction when
// one is carried in the context so a state change commits together with its
// version and feedback rows.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, title, description, owner_id, department_id,
			state, current_version, revision, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		doc.Title,
		doc.Description,
		uuid.UUID(doc.OwnerID),
		uuid.UUID(doc.DepartmentID),
		doc.State.String(),
		doc.CurrentVersion,
		doc.Revision,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `
		SELECT id, title, description, owner_id, department_id,
		       state, current_version, revision, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(docID))
	doc, err := scanDocumentRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return doc, err
}

// Update writes the mutated document guarded by the revision token. The
// WHERE clause is the compare half of the compare-and-swap; zero rows
// affected is disambiguated into missing-row or stale-token.
func (s *PostgresStore) Update(ctx context.Context, doc *models.Document, expectedRevision int64) error {
	query := `
		UPDATE documents
		SET title = $3, description = $4, state = $5, current_version = $6,
		    revision = $7, updated_at = $8
		WHERE id = $1 AND revision = $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		expectedRevision,
		doc.Title,
		doc.Description,
		doc.State.String(),
		doc.CurrentVersion,
		doc.Revision,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`,
		uuid.UUID(doc.ID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check document existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) ListByState(ctx context.Context, state models.State, dept *id.DepartmentID) ([]*models.Document, error) {
	query := `
		SELECT id, title, description, owner_id, department_id,
		       state, current_version, revision, created_at, updated_at
		FROM documents
		WHERE state = $1 AND ($2::uuid IS NULL OR department_id = $2)
		ORDER BY updated_at ASC, id ASC
	`
	var deptArg any
	if dept != nil {
		deptArg = uuid.UUID(*dept)
	}
	return s.queryDocuments(ctx, query, state.String(), deptArg)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Document, error) {
	query := `
		SELECT id, title, description, owner_id, department_id,
		       state, current_version, revision, created_at, updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	return s.queryDocuments(ctx, query, uuid.UUID(ownerID))
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func scanDocumentRow(scan func(dest ...any) error) (*models.Document, error) {
	var (
		doc    models.Document
		docID  uuid.UUID
		owner  uuid.UUID
		deptID uuid.UUID
		state  string
	)
	err := scan(&docID, &doc.Title, &doc.Description, &owner, &deptID,
		&state, &doc.CurrentVersion, &doc.Revision, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.OwnerID = id.UserID(owner)
	doc.DepartmentID = id.DepartmentID(deptID)
	parsed, err := models.ParseState(state)
	if err != nil {
		return nil, fmt.Errorf("parse document state: %w", err)
	}
	doc.State = parsed
	return &doc, nil
}
