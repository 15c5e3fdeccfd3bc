package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/announce-service/internal/domain"
)

// APIKeyRepository stores machine credentials.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByKey(ctx context.Context, key string) (*domain.APIKey, error)
	List(ctx context.Context) ([]domain.APIKey, error)
	Delete(ctx context.Context, key string) (bool, error)
}

type apiKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns a Postgres-backed implementation.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepository{pool: pool}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	const query = `
        INSERT INTO api_keys (api_key, name, secret_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, key.Key, key.Name, key.SecretHash, string(key.Role), key.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *apiKeyRepository) GetByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	const query = `SELECT api_key, name, secret_hash, role, created_at FROM api_keys WHERE api_key=$1`
	var k domain.APIKey
	if err := r.pool.QueryRow(ctx, query, key).Scan(&k.Key, &k.Name, &k.SecretHash, &k.Role, &k.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (r *apiKeyRepository) List(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT api_key, name, secret_hash, role, created_at FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.APIKey{}
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.Key, &k.Name, &k.SecretHash, &k.Role, &k.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

func (r *apiKeyRepository) Delete(ctx context.Context, key string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE api_key=$1`, key)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
