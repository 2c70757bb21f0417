package model

// Chunk is the smallest retrievable unit of text. A small document maps to a
// single chunk whose id equals the document id; oversized documents are split
// into chunks with derived ids.
type Chunk struct {
	ChunkID   string `json:"chunk_id" db:"chunk_id"`
	Title     string `json:"title" db:"title"`
	Content   string `json:"content" db:"content"`
	Metadata  string `json:"metadata" db:"metadata"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// ScoredChunk is a chunk joined with its similarity to a query vector.
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}
