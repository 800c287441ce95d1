package model

type Session struct {
	SessionID    string `json:"session_id" db:"session_id"`
	Title        string `json:"title" db:"title"`
	Summary      string `json:"summary" db:"summary"`
	CreatedAt    int64  `json:"created_at" db:"created_at"`
	LastActiveAt int64  `json:"last_active_at" db:"last_active_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID        int64    `json:"id" db:"id"`
	SessionID string   `json:"session_id" db:"session_id"`
	Role      string   `json:"role" db:"role"`
	Content   string   `json:"content" db:"content"`
	Sources   []Source `json:"sources" db:"-"`
	Timestamp int64    `json:"timestamp" db:"timestamp"`
}
