package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/announce-service/internal/domain"
)

// TicketFilter captures ticket search parameters. Time ranges include the
// lower bound and exclude the upper bound. A non-positive Limit means no limit.
type TicketFilter struct {
	CreatorID         *int64
	Status            *domain.TicketStatus
	Action            *domain.TicketAction
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	StatusChangedFrom *time.Time
	StatusChangedTo   *time.Time
	Limit             int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create inserts a new ticket, returning ErrDuplicate when the id is taken.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// List returns matching tickets ordered by creation time, newest first.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateIfStatus applies patch only while the stored status equals
	// expected. It returns ErrStatusMismatch when another writer got there first.
	UpdateIfStatus(ctx context.Context, id string, expected domain.TicketStatus, patch domain.TicketPatch) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) (bool, error)
}

const ticketColumns = `ticket_id, action, status, creator_id, creator_name, approver_id, approver_name,
               status_changed_at, payload, success_chats, failed_chats, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository returns a Postgres-backed implementation.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	doc, err := toTicketDocument(ticket)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	success, err := nullableJSON(doc.SuccessChats)
	if err != nil {
		return err
	}
	failed, err := nullableJSON(doc.FailedChats)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.pool.Exec(ctx, query,
		doc.TicketID,
		doc.Action,
		doc.Status,
		doc.CreatorID,
		doc.CreatorName,
		doc.ApproverID,
		doc.ApproverName,
		doc.StatusChangedAt,
		payload,
		success,
		failed,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, string(*filter.Action))
		clauses = append(clauses, fmt.Sprintf("action=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.StatusChangedFrom != nil {
		args = append(args, *filter.StatusChangedFrom)
		clauses = append(clauses, fmt.Sprintf("status_changed_at >= $%d", len(args)))
	}
	if filter.StatusChangedTo != nil {
		args = append(args, *filter.StatusChangedTo)
		clauses = append(clauses, fmt.Sprintf("status_changed_at < $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateIfStatus(ctx context.Context, id string, expected domain.TicketStatus, patch domain.TicketPatch) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.ApproverID != nil {
		set("approver_id", *patch.ApproverID)
	}
	if patch.ApproverName != nil {
		set("approver_name", *patch.ApproverName)
	}
	if patch.StatusChangedAt != nil {
		set("status_changed_at", *patch.StatusChangedAt)
	}
	if patch.Outcome != nil {
		success, err := json.Marshal(nonNilDocs(destinationDocuments(patch.Outcome.Succeeded)))
		if err != nil {
			return nil, err
		}
		failed, err := json.Marshal(nonNilDocs(failedDocuments(patch.Outcome.Failed)))
		if err != nil {
			return nil, err
		}
		set("success_chats", success)
		set("failed_chats", failed)
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	args = append(args, updatedAt)
	sets = append(sets, fmt.Sprintf("updated_at=GREATEST(updated_at, $%d)", len(args)))

	args = append(args, id, string(expected))
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE ticket_id=$%d AND status=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), ticketColumns)

	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_id=$1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrStatusMismatch
	}
	return ticket, err
}

func (r *ticketRepository) Delete(ctx context.Context, id string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE ticket_id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		doc                   ticketDocument
		payload, success, bad []byte
	)
	if err := row.Scan(
		&doc.TicketID,
		&doc.Action,
		&doc.Status,
		&doc.CreatorID,
		&doc.CreatorName,
		&doc.ApproverID,
		&doc.ApproverName,
		&doc.StatusChangedAt,
		&payload,
		&success,
		&bad,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &doc.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", doc.TicketID, err)
	}
	if len(success) > 0 {
		if err := json.Unmarshal(success, &doc.SuccessChats); err != nil {
			return nil, fmt.Errorf("decode success_chats of %s: %w", doc.TicketID, err)
		}
	}
	if len(bad) > 0 {
		if err := json.Unmarshal(bad, &doc.FailedChats); err != nil {
			return nil, fmt.Errorf("decode failed_chats of %s: %w", doc.TicketID, err)
		}
	}
	return doc.toDomain()
}

func nullableJSON(docs []destinationDocument) ([]byte, error) {
	if docs == nil {
		return nil, nil
	}
	return json.Marshal(docs)
}

func nonNilDocs(docs []destinationDocument) []destinationDocument {
	if docs == nil {
		return []destinationDocument{}
	}
	return docs
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
