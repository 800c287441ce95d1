package model

// CachedEmbedding is one persisted vector keyed by model, task type and content hash.
// Ctime is unix seconds.
type CachedEmbedding struct {
	Model       string    `json:"model"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Vector      []float32 `json:"vector"`
	Ctime       int64     `json:"ctime"`
}
