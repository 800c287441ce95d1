package model

type Category string

const (
	CategoryStatic Category = "static"
	CategoryUser   Category = "user"
)

func (c Category) Valid() bool {
	return c == CategoryStatic || c == CategoryUser
}

// Chunk is one indexed unit of document text. SessionID is set only for user chunks.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Filename  string    `json:"filename"`
	PageLabel string    `json:"page_label"`
	Category  Category  `json:"category"`
	SessionID string    `json:"session_id,omitempty"`
	Embedding []float32 `json:"-"`
}

type ChunkHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
