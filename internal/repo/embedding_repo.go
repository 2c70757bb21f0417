package repo

import (
	"context"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/askdoc/internal/model"
)

// EmbeddingRepo persists (chunk_id, vector) rows. Vectors are stored as JSON
// text; there is no uniqueness constraint, Insert appends blindly and callers
// model updates as delete+insert.
type EmbeddingRepo struct {
	db *sqlx.DB
}

func NewEmbeddingRepo(db *sqlx.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Insert(ctx context.Context, emb *model.Embedding) error {
	blob, err := json.Marshal(emb.Vector)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"chunk_id":   emb.ChunkID,
		"embedding":  string(blob),
		"created_at": emb.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("embeddings", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingRepo) DeleteByChunk(ctx context.Context, chunkID string) error {
	where := map[string]interface{}{
		"chunk_id": chunkID,
	}
	sqlStr, args, err := builder.BuildDelete("embeddings", where)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM embeddings")
	return err
}

// Scan streams every stored (chunk_id, vector) pair to fn in insertion order.
// A non-nil error from fn stops the scan and is returned as-is.
func (r *EmbeddingRepo) Scan(ctx context.Context, fn func(chunkID string, vector []float32) error) error {
	rows, err := r.db.QueryContext(ctx, "SELECT chunk_id, embedding FROM embeddings")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return err
		}
		var vector []float32
		if err := json.Unmarshal(blob, &vector); err != nil {
			return err
		}
		if err := fn(chunkID, vector); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *EmbeddingRepo) ExistsByChunk(ctx context.Context, chunkID string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM embeddings WHERE chunk_id = ?", chunkID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *EmbeddingRepo) CountByChunk(ctx context.Context, chunkID string) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM embeddings WHERE chunk_id = ?", chunkID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EmbeddingRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM embeddings"); err != nil {
		return 0, err
	}
	return count, nil
}
