package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Filters narrows a trail listing. Zero values mean no constraint.
type Filters struct {
	Kind     string
	Email    string
	UserID   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PageInfo reports the paging state of a listing.
type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
}

// Store persists audit events in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes one event to the audit_events table.
func (s *Store) Insert(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_events (kind, user_id, email, ip, occurred_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)`,
		event.Kind, event.UserID, event.Email, event.IP, event.At)
	return err
}

// List returns events newest first, fetching one row past the page size to
// detect whether a next page exists.
func (s *Store) List(ctx context.Context, filters Filters) ([]Event, PageInfo, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	conds := make([]string, 0, 5)
	args := make([]any, 0, 7)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.Kind != "" {
		add("kind = $%d", filters.Kind)
	}
	if filters.Email != "" {
		add("email = $%d", filters.Email)
	}
	if filters.UserID != "" {
		add("user_id = $%d", filters.UserID)
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}

	query := `SELECT kind, COALESCE(user_id, ''), COALESCE(email, ''), COALESCE(ip, ''), occurred_at
FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1, (page-1)*pageSize)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, PageInfo{}, err
	}
	defer rows.Close()

	events := make([]Event, 0, pageSize)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Kind, &e.UserID, &e.Email, &e.IP, &e.At); err != nil {
			return nil, PageInfo{}, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, PageInfo{}, err
	}

	hasNext := len(events) > pageSize
	if hasNext {
		events = events[:pageSize]
	}
	return events, PageInfo{Page: page, PageSize: pageSize, HasNext: hasNext}, nil
}

// Prune deletes events older than the retention window and reports how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, now.Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
