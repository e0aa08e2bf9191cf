package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineFilters narrows a timeline query. Zero values mean "no filter".
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	UserID   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo describes the returned page.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}

// Repository provides read and maintenance access to stored entries.
type Repository interface {
	Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Service coordinates audit timeline reads for the ops surface.
type Service struct {
	repo Repository
}

// NewService returns a timeline service over the repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	// One extra row decides HasNext without a count query.
	rows, err := s.repo.Timeline(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: rows, Paging: paging}, nil
}

// PGRepository reads audit_logs from Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository over the pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline implements Repository.
func (r *PGRepository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if strings.TrimSpace(filters.UserID) != "" {
		add("actor_id = $%d", strings.TrimSpace(filters.UserID))
	}
	if strings.TrimSpace(filters.Action) != "" {
		add("action = $%d", strings.TrimSpace(filters.Action))
	}

	query := `SELECT id, occurred_at, actor_id, action, resource_type, resource_id, ip_address, user_agent, metadata, success, error_message FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Purge deletes entries older than the cutoff and returns the number
// removed. Called by the retention worker only.
func (r *PGRepository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEntry(rows pgx.Rows) (Entry, error) {
	var (
		entry    Entry
		metaJSON []byte
	)
	if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.UserID, &entry.Action, &entry.ResourceType,
		&entry.ResourceID, &entry.IPAddress, &entry.UserAgent, &metaJSON, &entry.Success, &entry.ErrorMessage); err != nil {
		return Entry{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &entry.Metadata); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}
