package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateDepartment(ctx context.Context, dept *Department) error {
	query := `
		INSERT INTO departments (id, name, code, approver_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(dept.ID),
		dept.Name,
		dept.Code,
		approverValue(dept.ApproverID),
		dept.CreatedAt,
		dept.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDepartment(ctx context.Context, deptID id.DepartmentID) (*Department, error) {
	query := `
		SELECT id, name, code, approver_id, created_at, updated_at
		FROM departments
		WHERE id = $1
	`
	return scanDepartment(s.db.QueryRowContext(ctx, query, uuid.UUID(deptID)))
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]*Department, error) {
	query := `
		SELECT id, name, code, approver_id, created_at, updated_at
		FROM departments
		ORDER BY LOWER(name) ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	var out []*Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateDepartment(ctx context.Context, dept *Department) error {
	query := `
		UPDATE departments
		SET name = $2, code = $3, approver_id = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(dept.ID),
		dept.Name,
		dept.Code,
		approverValue(dept.ApproverID),
		dept.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update department rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PutUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, role, department_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email,
		    role = EXCLUDED.role, department_id = EXCLUDED.department_id
	`
	var deptID any
	if user.DepartmentID != nil {
		deptID = uuid.UUID(*user.DepartmentID)
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Name,
		user.Email,
		user.Role.String(),
		deptID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	query := `
		SELECT id, name, email, role, department_id
		FROM users
		WHERE id = $1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role id.Role) ([]*User, error) {
	query := `
		SELECT id, name, email, role, department_id
		FROM users
		WHERE role = $1
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, role.String())
	if err != nil {
		return nil, fmt.Errorf("query users by role: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func approverValue(approver *id.UserID) any {
	if approver == nil {
		return nil
	}
	return uuid.UUID(*approver)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDepartment(row rowScanner) (*Department, error) {
	var (
		dept     Department
		deptID   uuid.UUID
		approver uuid.NullUUID
	)
	err := row.Scan(&deptID, &dept.Name, &dept.Code, &approver, &dept.CreatedAt, &dept.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan department: %w", err)
	}
	dept.ID = id.DepartmentID(deptID)
	if approver.Valid {
		approverID := id.UserID(approver.UUID)
		dept.ApproverID = &approverID
	}
	return &dept, nil
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user   User
		userID uuid.UUID
		role   string
		deptID uuid.NullUUID
	)
	err := row.Scan(&userID, &user.Name, &user.Email, &role, &deptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = id.UserID(userID)
	parsedRole, err := id.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("parse user role: %w", err)
	}
	user.Role = parsedRole
	if deptID.Valid {
		departmentID := id.DepartmentID(deptID.UUID)
		user.DepartmentID = &departmentID
	}
	return &user, nil
}
