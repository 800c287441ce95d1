package repo

import (
	"context"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragkb/internal/model"
)

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, msg *model.ChatMessage) error {
	raw, err := encodeSources(msg.Sources)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"session_id": msg.SessionID,
		"role":       msg.Role,
		"content":    msg.Content,
		"sources":    raw,
		"timestamp":  msg.Timestamp,
	}
	sqlStr, args, err := builder.BuildInsert("chat_messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, sqlStr, args...)
	return err
}

// ListBySession returns messages in insertion order.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	where := map[string]interface{}{"session_id": sessionID, "_orderby": "id asc"}
	sqlStr, args, err := builder.BuildSelect("chat_messages", where, []string{"id", "session_id", "role", "content", "sources", "timestamp"})
	if err != nil {
		return nil, err
	}
	rows, err := r.db.query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := make([]model.ChatMessage, 0)
	for rows.Next() {
		var msg model.ChatMessage
		var raw string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &raw, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Sources = decodeSources(raw)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
