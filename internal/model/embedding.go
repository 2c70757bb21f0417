package model

type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	Vector    []float32 `json:"vector"`
	CreatedAt int64     `json:"created_at"`
}
