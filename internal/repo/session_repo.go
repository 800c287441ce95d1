package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

const sessionSelect = "SELECT s.session_id, s.title, s.summary, s.created_at, " +
	"COALESCE(MAX(m.timestamp), s.created_at) AS last_active_at " +
	"FROM chat_sessions s LEFT JOIN chat_messages m ON m.session_id = s.session_id "

const sessionGroup = " GROUP BY s.session_id, s.title, s.summary, s.created_at"

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateIfAbsent inserts the session unless one with the same id exists.
// It reports whether a row was written.
func (r *SessionRepo) CreateIfAbsent(ctx context.Context, session *model.Session) (bool, error) {
	data := map[string]interface{}{
		"session_id": session.SessionID,
		"title":      session.Title,
		"summary":    session.Summary,
		"created_at": session.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("chat_sessions", []map[string]interface{}{data})
	if err != nil {
		return false, err
	}
	if _, err := r.db.exec(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	row := r.db.queryRow(ctx, sessionSelect+"WHERE s.session_id = ?"+sessionGroup, sessionID)
	var s model.Session
	if err := row.Scan(&s.SessionID, &s.Title, &s.Summary, &s.CreatedAt, &s.LastActiveAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListRecent orders sessions by last activity, most recent first.
func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.query(ctx, sessionSelect+sessionGroup+" ORDER BY last_active_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := make([]model.Session, 0)
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.SessionID, &s.Title, &s.Summary, &s.CreatedAt, &s.LastActiveAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LastActive returns max(message timestamp) for the session, else its creation time.
// ok is false when the session is unknown to the registry.
func (r *SessionRepo) LastActive(ctx context.Context, sessionID string) (int64, bool, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return s.LastActiveAt, true, nil
}

func (r *SessionRepo) UpdateTitle(ctx context.Context, sessionID, title string) error {
	return r.update(ctx, sessionID, map[string]interface{}{"title": title})
}

func (r *SessionRepo) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	return r.update(ctx, sessionID, map[string]interface{}{"summary": summary})
}

func (r *SessionRepo) update(ctx context.Context, sessionID string, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("chat_sessions", map[string]interface{}{"session_id": sessionID}, update)
	if err != nil {
		return err
	}
	res, err := r.db.exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete removes the session and its messages in one transaction.
// Query log rows are left alone.
func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, table := range []string{"chat_messages", "chat_sessions"} {
		sqlStr, args, err := builder.BuildDelete(table, map[string]interface{}{"session_id": sessionID})
		if err != nil {
			return err
		}
		sqlStr, args = r.db.finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearAll drops every session and message. Query log rows are left alone.
func (r *SessionRepo) ClearAll(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions"); err != nil {
		return err
	}
	return tx.Commit()
}
