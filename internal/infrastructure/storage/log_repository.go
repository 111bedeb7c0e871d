package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

// LogRepository stores audit records in the logs table.
type LogRepository struct {
	db *sqlx.DB
}

var _ ports.LogRepository = (*LogRepository)(nil)

// NewLogRepository wires a sqlx.DB implementation.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

// InsertLog appends one decision record.
func (r *LogRepository) InsertLog(ctx context.Context, record domain.LogRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("logs").
		Columns("action", "is_duplicate", "title", "description", "source_name", "created_at").
		Values(string(record.Action), record.IsDuplicate, record.Title, record.Description, record.SourceName, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build log insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// ListLogs returns records newest first, optionally filtered by the duplicate flag.
func (r *LogRepository) ListLogs(ctx context.Context, page Page, isDuplicate *bool) ([]domain.LogRecord, error) {
	builder := psql.Select("id", "action", "is_duplicate", "title", "description", "source_name", "created_at").
		From("logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset)
	if isDuplicate != nil {
		builder = builder.Where(sq.Eq{"is_duplicate": *isDuplicate})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build log list: %w", err)
	}

	records := []domain.LogRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return records, nil
}

// CountLogs counts records matching the optional duplicate filter.
func (r *LogRepository) CountLogs(ctx context.Context, isDuplicate *bool) (int, error) {
	builder := psql.Select("COUNT(*)").From("logs")
	if isDuplicate != nil {
		builder = builder.Where(sq.Eq{"is_duplicate": *isDuplicate})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build log count: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return total, nil
}
