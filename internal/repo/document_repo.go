package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/askdoc/internal/model"
	appErr "github.com/xxxsen/askdoc/internal/pkg/errors"
)

// DocumentRepo persists chunk documents keyed by chunk_id.
type DocumentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepo(db *sqlx.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts or replaces the row for doc.ChunkID; created_at is always
// refreshed, re-adding an id is last-write-wins.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *model.Chunk) error {
	data := map[string]interface{}{
		"chunk_id":   doc.ChunkID,
		"title":      doc.Title,
		"content":    doc.Content,
		"metadata":   doc.Metadata,
		"created_at": doc.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, chunkID string) (*model.Chunk, error) {
	where := map[string]interface{}{
		"chunk_id": chunkID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"chunk_id", "title", "content", "metadata", "created_at"})
	if err != nil {
		return nil, err
	}
	var doc model.Chunk
	if err := r.db.GetContext(ctx, &doc, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) Exists(ctx context.Context, chunkID string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM documents WHERE chunk_id = ?", chunkID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, chunkID string) error {
	where := map[string]interface{}{
		"chunk_id": chunkID,
	}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// List returns chunks most recently created first.
func (r *DocumentRepo) List(ctx context.Context, limit, offset uint) ([]model.Chunk, error) {
	if limit == 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"_orderby": "created_at desc, chunk_id asc",
		"_limit":   []uint{offset, limit},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"chunk_id", "title", "content", "metadata", "created_at"})
	if err != nil {
		return nil, err
	}
	var docs []model.Chunk
	if err := r.db.SelectContext(ctx, &docs, sqlStr, args...); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListAll is for batch maintenance only; it loads every document row.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]model.Chunk, error) {
	var docs []model.Chunk
	if err := r.db.SelectContext(ctx, &docs,
		"SELECT chunk_id, title, content, metadata, created_at FROM documents ORDER BY chunk_id"); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM documents"); err != nil {
		return 0, err
	}
	return count, nil
}
