package model

// QueryRecord is an append-only usage history entry, never used for retrieval.
type QueryRecord struct {
	QueryText string `json:"query_text" db:"query_text"`
	IPAddress string `json:"ip_address" db:"ip_address"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}
