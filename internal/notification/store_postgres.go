package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_id, document_id, type, message, read, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(n.ID),
		uuid.UUID(n.RecipientID),
		uuid.UUID(n.DocumentID),
		string(n.Type),
		n.Message,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, nID id.NotificationID, recipient id.UserID) error {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(nID), uuid.UUID(recipient))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, recipient id.UserID) (int, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE recipient_id = $1 AND read = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(recipient))
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all read rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, recipient_id, document_id, type, message, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(recipient), unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var (
			n           Notification
			nID         uuid.UUID
			recipientID uuid.UUID
			documentID  uuid.UUID
			typ         string
		)
		err := rows.Scan(&nID, &recipientID, &documentID, &typ, &n.Message, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = id.NotificationID(nID)
		n.RecipientID = id.UserID(recipientID)
		n.DocumentID = id.DocumentID(documentID)
		n.Type = Type(typ)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, recipient id.UserID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_id = $1 AND read = FALSE
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(recipient)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
