package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/announce-service/internal/domain"
)

// UserFilter captures user search parameters.
type UserFilter struct {
	UserIDs   []int64
	Name      *string
	Admin     *bool
	Whitelist *bool
	Limit     int
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Update(ctx context.Context, userID int64, patch domain.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, userID int64) (bool, error)
}

const userColumns = `user_id, name, admin, whitelist, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		user.UserID,
		user.Name,
		user.Admin,
		user.Whitelist,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.UserIDs) > 0 {
		args = append(args, filter.UserIDs)
		clauses = append(clauses, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	if filter.Name != nil {
		args = append(args, *filter.Name)
		clauses = append(clauses, fmt.Sprintf("name=$%d", len(args)))
	}
	if filter.Admin != nil {
		args = append(args, *filter.Admin)
		clauses = append(clauses, fmt.Sprintf("admin=$%d", len(args)))
	}
	if filter.Whitelist != nil {
		args = append(args, *filter.Whitelist)
		clauses = append(clauses, fmt.Sprintf("whitelist=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY user_id`, userColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) Update(ctx context.Context, userID int64, patch domain.UserPatch) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1 FOR UPDATE`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	patch.Apply(user)
	user.UpdatedAt = time.Now()

	const query = `UPDATE users SET name=$1, admin=$2, whitelist=$3, updated_at=$4 WHERE user_id=$5`
	if _, err := tx.Exec(ctx, query, user.Name, user.Admin, user.Whitelist, user.UpdatedAt, user.UserID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.UserID,
		&user.Name,
		&user.Admin,
		&user.Whitelist,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
