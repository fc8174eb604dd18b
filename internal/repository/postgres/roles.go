package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/repository"
)

const rolesTable = "iam.roles"

// RoleStore implements role persistence operations.
type RoleStore struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleStore constructs a PostgreSQL-backed role store.
func NewRoleStore(exec pgExecutor) *RoleStore {
	return &RoleStore{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a store configured to execute within the provided transaction.
func (r *RoleStore) WithTx(tx pgx.Tx) *RoleStore {
	if tx == nil {
		return r
	}
	return &RoleStore{exec: tx, builder: r.builder}
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role        domain.Role
		description sql.NullString
	)
	if err := row.Scan(&role.ID, &role.Name, &description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	role.Description = description.String
	return &role, nil
}

// FindByID implements port.RoleStore.
func (r *RoleStore) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	stmt, args, err := r.builder.Select("id", "name", "description").
		From(rolesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}
	return scanRole(r.exec.QueryRow(ctx, stmt, args...))
}

// Create implements port.RoleStore.
func (r *RoleStore) Create(ctx context.Context, role *domain.Role) error {
	if role == nil {
		return fmt.Errorf("role is required")
	}
	if role.Persisted() {
		return repository.Reject("Role already exists.")
	}

	name := strings.TrimSpace(role.Name)
	if name == "" {
		return repository.Reject("Role name is required.")
	}

	id := uuid.NewString()
	stmt, args, err := r.builder.Insert(rolesTable).
		Columns("id", "name", "description").
		Values(id, name, nullable(role.Description)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if rej := rejectUniqueViolation(err, fmt.Sprintf("Role name '%s' is already taken.", name)); rej != nil {
			return rej
		}
		return fmt.Errorf("insert role: %w", err)
	}

	role.ID = id
	role.Name = name
	return nil
}

// Update implements port.RoleStore.
func (r *RoleStore) Update(ctx context.Context, role *domain.Role) error {
	if !role.Persisted() {
		return repository.ErrNotFound
	}

	name := strings.TrimSpace(role.Name)
	if name == "" {
		return repository.Reject("Role name is required.")
	}

	stmt, args, err := r.builder.Update(rolesTable).
		Set("name", name).
		Set("description", nullable(role.Description)).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if rej := rejectUniqueViolation(err, fmt.Sprintf("Role name '%s' is already taken.", name)); rej != nil {
			return rej
		}
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	role.Name = name
	return nil
}

// Delete implements port.RoleStore. Memberships cascade.
func (r *RoleStore) Delete(ctx context.Context, role *domain.Role) error {
	if !role.Persisted() {
		return repository.ErrNotFound
	}

	stmt, args, err := r.builder.Delete(rolesTable).Where(squirrel.Eq{"id": role.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// QueryRoles implements port.RoleStore.
func (r *RoleStore) QueryRoles(ctx context.Context, query domain.Query) ([]domain.Role, int, error) {
	var where squirrel.Sqlizer = squirrel.Expr("TRUE")
	if filter := strings.TrimSpace(query.Filter); filter != "" {
		where = squirrel.ILike{"name": "%" + escapeLike(filter) + "%"}
	}

	total, err := countRows(ctx, r.exec, r.builder, rolesTable, where)
	if err != nil {
		return nil, 0, err
	}

	stmt, args, err := pageQuery(
		r.builder.Select("id", "name", "description").From(rolesTable).Where(where).OrderBy("name ASC"),
		query,
	).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, total, nil
}

var _ port.RoleStore = (*RoleStore)(nil)
