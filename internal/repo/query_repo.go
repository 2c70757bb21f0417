package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/askdoc/internal/model"
)

// QueryRepo is the append-only usage history.
type QueryRepo struct {
	db *sqlx.DB
}

func NewQueryRepo(db *sqlx.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

func (r *QueryRepo) Append(ctx context.Context, record *model.QueryRecord) error {
	data := map[string]interface{}{
		"query_text": record.QueryText,
		"ip_address": record.IPAddress,
		"created_at": record.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("query_history", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *QueryRepo) Recent(ctx context.Context, limit uint) ([]model.QueryRecord, error) {
	if limit == 0 {
		limit = 5
	}
	where := map[string]interface{}{
		"_orderby": "created_at desc",
		"_limit":   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("query_history", where, []string{"query_text", "ip_address", "created_at"})
	if err != nil {
		return nil, err
	}
	var records []model.QueryRecord
	if err := r.db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, err
	}
	return records, nil
}
