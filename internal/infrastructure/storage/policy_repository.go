package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/ports"
)

// ErrInvalidPolicy marks a policy rejected before reaching the database.
var ErrInvalidPolicy = errors.New("invalid policy")

var policyColumns = []string{
	"id", "title", "description", "source_name", "source_url",
	"published_at", "is_deleted", "created_at", "updated_at",
}

// PolicyRepository persists policies into Postgres.
type PolicyRepository struct {
	db *sqlx.DB
}

var _ ports.PolicyRepository = (*PolicyRepository)(nil)

// NewPolicyRepository wires a sqlx.DB implementation.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// ActiveTitles returns the trimmed titles of every non-deleted policy across all sources.
func (r *PolicyRepository) ActiveTitles(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := psql.Select("title").From("policies").Where(sq.Eq{"is_deleted": false}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build titles query: %w", err)
	}

	var titles []string
	if err := r.db.SelectContext(ctx, &titles, query, args...); err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}

	out := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		out[strings.TrimSpace(title)] = struct{}{}
	}
	return out, nil
}

// ActiveExcludingSource returns title/description pairs of non-deleted policies stored by other sources.
func (r *PolicyRepository) ActiveExcludingSource(ctx context.Context, sourceName string) ([]domain.Candidate, error) {
	query, args, err := psql.Select("title", "description").
		From("policies").
		Where(sq.And{sq.Eq{"is_deleted": false}, sq.NotEq{"source_name": sourceName}}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reference query: %w", err)
	}

	var rows []struct {
		Title       string `db:"title"`
		Description string `db:"description"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}

	out := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Candidate{Title: row.Title, Description: row.Description})
	}
	return out, nil
}

// InsertBatch inserts each policy in its own statement so one failure does not block the rest.
func (r *PolicyRepository) InsertBatch(ctx context.Context, policies []domain.Policy) ports.InsertResult {
	var (
		result ports.InsertResult
		errs   []error
	)

	for i, policy := range policies {
		if err := r.insertOne(ctx, policy); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("policy #%d %q: %w", i, policy.Title, err))
			continue
		}
		result.Inserted++
	}

	result.Err = errors.Join(errs...)
	return result
}

func (r *PolicyRepository) insertOne(ctx context.Context, policy domain.Policy) error {
	if err := validatePolicy(policy); err != nil {
		return err
	}

	query, args, err := psql.Insert("policies").
		Columns("title", "description", "source_name", "source_url", "published_at").
		Values(
			strings.TrimSpace(policy.Title),
			strings.TrimSpace(policy.Description),
			policy.SourceName,
			policy.SourceURL,
			policy.PublishedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func validatePolicy(p domain.Policy) error {
	var missing []string
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Description) == "" {
		missing = append(missing, "description")
	}
	if p.SourceName == "" {
		missing = append(missing, "sourceName")
	}
	if p.SourceURL == "" {
		missing = append(missing, "sourceUrl")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidPolicy, strings.Join(missing, ", "))
	}
	return nil
}

// ListActive returns non-deleted policies, newest first.
func (r *PolicyRepository) ListActive(ctx context.Context, page Page) ([]domain.Policy, error) {
	query, args, err := psql.Select(policyColumns...).
		From("policies").
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("created_at DESC", "id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	policies := []domain.Policy{}
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// CountActive counts non-deleted policies.
func (r *PolicyRepository) CountActive(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("policies").Where(sq.Eq{"is_deleted": false}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count policies: %w", err)
	}
	return total, nil
}

// SoftDelete flags a non-deleted policy as deleted. ErrNotFound when nothing matched.
func (r *PolicyRepository) SoftDelete(ctx context.Context, id int64) error {
	query, args, err := psql.Update("policies").
		Set("is_deleted", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.And{sq.Eq{"id": id}, sq.Eq{"is_deleted": false}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("soft delete policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
