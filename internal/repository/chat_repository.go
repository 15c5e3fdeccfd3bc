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

// ChatFilter captures chat search parameters. Set filters are combined with
// AND; each list filter matches when any of its values matches.
type ChatFilter struct {
	ChatIDs    []int64
	Names      []string
	Type       *domain.ChatType
	Categories []string
	Languages  []string
	Labels     []string
	Active     *bool
	Limit      int
}

// ChatRepository encapsulates destination persistence.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, chatID int64) (*domain.Chat, error)
	List(ctx context.Context, filter ChatFilter) ([]domain.Chat, error)
	Update(ctx context.Context, chatID int64, patch domain.ChatPatch) (*domain.Chat, error)
	Delete(ctx context.Context, chatID int64) (bool, error)
}

const chatColumns = `chat_id, name, type, category, language, label, active, description, created_at, updated_at`

type chatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository returns a Postgres-backed implementation.
func NewChatRepository(pool *pgxpool.Pool) ChatRepository {
	return &chatRepository{pool: pool}
}

func (r *chatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	doc := toChatDocument(chat)
	const query = `
        INSERT INTO chats (` + chatColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, query,
		doc.ChatID,
		doc.Name,
		doc.Type,
		doc.Category,
		doc.Language,
		doc.Label,
		doc.Active,
		doc.Description,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *chatRepository) GetByID(ctx context.Context, chatID int64) (*domain.Chat, error) {
	chat, err := scanChat(r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id=$1`, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chat, err
}

func (r *chatRepository) List(ctx context.Context, filter ChatFilter) ([]domain.Chat, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.ChatIDs) > 0 {
		args = append(args, filter.ChatIDs)
		clauses = append(clauses, fmt.Sprintf("chat_id = ANY($%d)", len(args)))
	}
	if len(filter.Names) > 0 {
		args = append(args, filter.Names)
		clauses = append(clauses, fmt.Sprintf("name = ANY($%d)", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if len(filter.Categories) > 0 {
		args = append(args, filter.Categories)
		clauses = append(clauses, fmt.Sprintf("category && $%d::text[]", len(args)))
	}
	if len(filter.Languages) > 0 {
		args = append(args, filter.Languages)
		clauses = append(clauses, fmt.Sprintf("language && $%d::text[]", len(args)))
	}
	if len(filter.Labels) > 0 {
		args = append(args, filter.Labels)
		clauses = append(clauses, fmt.Sprintf("label && $%d::text[]", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM chats WHERE %s ORDER BY chat_id`, chatColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *chat)
	}
	return result, rows.Err()
}

func (r *chatRepository) Update(ctx context.Context, chatID int64, patch domain.ChatPatch) (*domain.Chat, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	chat, err := scanChat(tx.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id=$1 FOR UPDATE`, chatID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	patch.Apply(chat)
	chat.UpdatedAt = time.Now()
	doc := toChatDocument(chat)

	const query = `
        UPDATE chats SET name=$1, type=$2, category=$3, language=$4, label=$5, active=$6,
            description=$7, updated_at=$8
        WHERE chat_id=$9`
	if _, err := tx.Exec(ctx, query,
		doc.Name,
		doc.Type,
		doc.Category,
		doc.Language,
		doc.Label,
		doc.Active,
		doc.Description,
		doc.UpdatedAt,
		doc.ChatID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *chatRepository) Delete(ctx context.Context, chatID int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE chat_id=$1`, chatID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var doc chatDocument
	if err := row.Scan(
		&doc.ChatID,
		&doc.Name,
		&doc.Type,
		&doc.Category,
		&doc.Language,
		&doc.Label,
		&doc.Active,
		&doc.Description,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	chat := doc.toDomain()
	return &chat, nil
}
