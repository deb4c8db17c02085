package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	txcontext "examflow/pkg/platform/tx"
)

// PostgresStore persists version history. Append participates in the caller's
// transaction when one is carried in the context, which is how a version row
// and its document state reset commit as one atomic unit.
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

func (s *PostgresStore) Append(ctx context.Context, v *Version) error {
	query := `
		INSERT INTO document_versions (
			document_id, version_number, content_locator, key_handle,
			uploaded_by, description, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(v.DocumentID),
		v.VersionNumber,
		v.ContentLocator,
		v.KeyHandle,
		uuid.UUID(v.UploadedBy),
		v.Description,
		v.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*Version, error) {
	query := `
		SELECT document_id, version_number, content_locator, key_handle,
		       uploaded_by, description, created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("query document versions: %w", err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return versions, nil
}

func (s *PostgresStore) Find(ctx context.Context, docID id.DocumentID, number int) (*Version, error) {
	query := `
		SELECT document_id, version_number, content_locator, key_handle,
		       uploaded_by, description, created_at
		FROM document_versions
		WHERE document_id = $1 AND version_number = $2
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(docID), number)

	var (
		v          Version
		documentID uuid.UUID
		uploadedBy uuid.UUID
	)
	err := row.Scan(&documentID, &v.VersionNumber, &v.ContentLocator, &v.KeyHandle,
		&uploadedBy, &v.Description, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document version: %w", err)
	}
	v.DocumentID = id.DocumentID(documentID)
	v.UploadedBy = id.UserID(uploadedBy)
	return &v, nil
}

func scanVersion(rows *sql.Rows) (*Version, error) {
	var (
		v          Version
		documentID uuid.UUID
		uploadedBy uuid.UUID
	)
	err := rows.Scan(&documentID, &v.VersionNumber, &v.ContentLocator, &v.KeyHandle,
		&uploadedBy, &v.Description, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan document version: %w", err)
	}
	v.DocumentID = id.DocumentID(documentID)
	v.UploadedBy = id.UserID(uploadedBy)
	return &v, nil
}
