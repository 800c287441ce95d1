package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/ragkb/internal/lifecycle"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/pkg/timeutil"
	"github.com/xxxsen/ragkb/internal/repo"
)

const (
	DefaultSessionTitle = "New Chat"
	defaultSessionLimit = 10
)

type SessionService struct {
	sessions *repo.SessionRepo
	messages *repo.MessageRepo
	deleter  *lifecycle.Deleter
}

func NewSessionService(sessions *repo.SessionRepo, messages *repo.MessageRepo, deleter *lifecycle.Deleter) *SessionService {
	return &SessionService{sessions: sessions, messages: messages, deleter: deleter}
}

// Create registers a session. Creating an existing session leaves it untouched.
func (s *SessionService) Create(ctx context.Context, sessionID, title string) (*model.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required: %w", appErr.ErrInvalid)
	}
	if err := s.ensure(ctx, sessionID, title); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, sessionID)
}

func (s *SessionService) ensure(ctx context.Context, sessionID, title string) error {
	if strings.TrimSpace(title) == "" {
		title = DefaultSessionTitle
	}
	_, err := s.sessions.CreateIfAbsent(ctx, &model.Session{
		SessionID: sessionID,
		Title:     title,
		CreatedAt: timeutil.NowMillis(),
	})
	return err
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

func (s *SessionService) List(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	return s.sessions.ListRecent(ctx, limit)
}

// Messages returns the history in insertion order. Unknown sessions have no history.
func (s *SessionService) Messages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *SessionService) AppendMessage(ctx context.Context, sessionID, role, content string, sources []model.Source) (*model.ChatMessage, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required: %w", appErr.ErrInvalid)
	}
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, fmt.Errorf("role %q: %w", role, appErr.ErrInvalid)
	}
	if err := s.ensure(ctx, sessionID, ""); err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Sources:   sources,
		Timestamp: timeutil.NowMillis(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *SessionService) UpdateTitle(ctx context.Context, sessionID, title string) error {
	return s.sessions.UpdateTitle(ctx, sessionID, title)
}

func (s *SessionService) UpdateSummary(ctx context.Context, sessionID, summary string) error {
	return s.sessions.UpdateSummary(ctx, sessionID, summary)
}

// Delete drops the session and its messages now. Vectors go in the background and
// uploaded files wait for the reaper. Query events are kept.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session_id is required: %w", appErr.ErrInvalid)
	}
	return s.deleter.DeleteSession(ctx, sessionID)
}
