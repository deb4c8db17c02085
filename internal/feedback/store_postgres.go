package feedback

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "examflow/pkg/domain"
	txcontext "examflow/pkg/platform/tx"
)

// PostgresStore persists the feedback ledger. Append joins the caller's
// transaction when one is present so that a rejection's feedback row commits
// together with the document state change.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, fb *Feedback) error {
	query := `
		INSERT INTO feedback (
			id, document_id, version_number, reviewer_id, reviewer_role,
			outcome, comments, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(fb.ID),
		uuid.UUID(fb.DocumentID),
		fb.VersionNumber,
		uuid.UUID(fb.ReviewerID),
		fb.ReviewerRole.String(),
		string(fb.Outcome),
		fb.Comments,
		fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]*Feedback, error) {
	query := `
		SELECT id, document_id, version_number, reviewer_id, reviewer_role,
		       outcome, comments, created_at
		FROM feedback
		WHERE document_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var entries []*Feedback
	for rows.Next() {
		var (
			fb         Feedback
			fbID       uuid.UUID
			documentID uuid.UUID
			reviewerID uuid.UUID
			role       string
			outcome    string
		)
		err := rows.Scan(&fbID, &documentID, &fb.VersionNumber, &reviewerID, &role,
			&outcome, &fb.Comments, &fb.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.ID = id.FeedbackID(fbID)
		fb.DocumentID = id.DocumentID(documentID)
		fb.ReviewerID = id.UserID(reviewerID)
		parsedRole, err := id.ParseRole(role)
		if err != nil {
			return nil, fmt.Errorf("parse reviewer role: %w", err)
		}
		fb.ReviewerRole = parsedRole
		fb.Outcome = Outcome(outcome)
		entries = append(entries, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return entries, nil
}
