package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter narrows ticket listings. Nil fields do not filter.
// A non-positive Limit returns every match.
type TicketFilter struct {
	CreatedBy  *string
	Department *domain.Department
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// TicketChanges lists the mutable fields one update writes. Nil fields keep
// their stored value, so concurrent updates of different fields do not
// overwrite each other.
type TicketChanges struct {
	Subject     *string
	Description *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	Department  *domain.Department
	AssignedTo  *string
}

// TicketRepository encapsulates ticket persistence. Lists are ordered newest first.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	UpdateFields(ctx context.Context, id string, changes TicketChanges) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	AddComment(ctx context.Context, ticketID string, comment domain.Comment) error
	Stats(ctx context.Context, createdBy *string) (domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, subject, description, status, priority, department,
               created_by, assigned_to, attachments, ai_categorization, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, subject, description, status, priority, department,
                             created_by, assigned_to, attachments, ai_categorization)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	if ticket.Attachments == nil {
		ticket.Attachments = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Department,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.Attachments,
		ticket.AICategorization,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return mapPgError(err)
}

// UpdateFields writes only the columns named in changes and returns the
// stored row.
func (r *ticketRepository) UpdateFields(ctx context.Context, id string, changes TicketChanges) (*domain.Ticket, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}
	if changes.AssignedTo != nil && !validUUID(*changes.AssignedTo) {
		return nil, ErrNotFound
	}
	sets := make([]string, 0, 7)
	args := make([]any, 0, 7)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if changes.Subject != nil {
		set("subject", *changes.Subject)
	}
	if changes.Description != nil {
		set("description", *changes.Description)
	}
	if changes.Status != nil {
		set("status", *changes.Status)
	}
	if changes.Priority != nil {
		set("priority", *changes.Priority)
	}
	if changes.Department != nil {
		set("department", *changes.Department)
	}
	if changes.AssignedTo != nil {
		set("assigned_to", *changes.AssignedTo)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING `+ticketColumns,
		strings.Join(sets, ", "), len(args))
	ticket, err := r.fetchSingle(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number=$1`, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	if err := r.loadComments(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		if !validUUID(*filter.CreatedBy) {
			return nil, nil
		}
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, ticket_number DESC`,
		ticketColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tickets, err := scanTickets(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := r.loadComments(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// AddComment inserts the comment and bumps updated_at in one transaction.
func (r *ticketRepository) AddComment(ctx context.Context, ticketID string, comment domain.Comment) error {
	if !validUUID(ticketID) {
		return ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, comment.CreatedAt, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	const insert = `
        INSERT INTO ticket_comments (ticket_id, author_id, text, created_at)
        VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, insert, ticketID, comment.AuthorID, comment.Text, comment.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Stats(ctx context.Context, createdBy *string) (domain.TicketStats, error) {
	var stats domain.TicketStats
	if createdBy != nil && !validUUID(*createdBy) {
		return stats, nil
	}
	const query = `
        SELECT COUNT(*) FILTER (WHERE status='open'),
               COUNT(*) FILTER (WHERE status='in_progress'),
               COUNT(*) FILTER (WHERE status='resolved'),
               COUNT(*) FILTER (WHERE priority='urgent')
        FROM tickets
        WHERE $1::uuid IS NULL OR created_by=$1::uuid`
	err := r.pool.QueryRow(ctx, query, createdBy).Scan(&stats.Open, &stats.InProgress, &stats.Resolved, &stats.Urgent)
	return stats, err
}

func (r *ticketRepository) loadComments(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
		tickets[i].Comments = []domain.Comment{}
	}
	const query = `
        SELECT ticket_id, author_id, text, created_at
        FROM ticket_comments WHERE ticket_id = ANY($1::uuid[]) ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticketID string
			comment  domain.Comment
		)
		if err := rows.Scan(&ticketID, &comment.AuthorID, &comment.Text, &comment.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[ticketID]; ok {
			tickets[i].Comments = append(tickets[i].Comments, comment)
		}
	}
	return rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.Subject,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Department,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.Attachments,
			&ticket.AICategorization,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
