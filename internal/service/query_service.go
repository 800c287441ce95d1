package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/pkg/timeutil"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/vectorstore"
	"github.com/xxxsen/ragkb/internal/visibility"
)

const (
	FallbackAnswer   = "I couldn't find specific details in the knowledge base to answer your question. Try rephrasing it or uploading a relevant document."
	snippetChars     = 200
	titleChars       = 50
	enrichTimeout    = 30 * time.Second
	unknownFilename  = "unknown"
	defaultRetrieveK = 3
)

type QueryRequest struct {
	Text      string `json:"query_text"`
	SessionID string `json:"session_id"`
}

type QueryResult struct {
	Answer          string         `json:"answer"`
	Sources         []model.Source `json:"sources"`
	ConfidenceScore float64        `json:"confidence_score"`
	LatencyMs       float64        `json:"latency_ms"`
	InputTokens     int64          `json:"input_tokens"`
	OutputTokens    int64          `json:"output_tokens"`
}

type QueryService struct {
	settings ai.Settings
	vectors  vectorstore.Store
	manager  *ai.Manager
	events   *repo.QueryLogRepo
	sessions *SessionService

	wg sync.WaitGroup
}

func NewQueryService(settings ai.Settings, vectors vectorstore.Store, manager *ai.Manager, events *repo.QueryLogRepo, sessions *SessionService) *QueryService {
	if settings.TopK <= 0 {
		settings.TopK = defaultRetrieveK
	}
	if manager == nil {
		manager = ai.NewManager(settings.Generator, ai.ManagerConfig{})
	}
	return &QueryService{settings: settings, vectors: vectors, manager: manager, events: events, sessions: sessions}
}

// Query answers a question from the passages visible to the session.
func (s *QueryService) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("query_text is required: %w", appErr.ErrInvalid)
	}
	sessionID := strings.TrimSpace(req.SessionID)
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	if !s.settings.EmbedderConfigured() {
		return nil, fmt.Errorf("embedder not configured: %w", appErr.ErrAIUnavailable)
	}
	start := time.Now()

	vec, err := s.settings.Embedder.Embed(ctx, text, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, vec, s.settings.TopK, visibility.Build(sessionID))
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w: %v", appErr.ErrTransientStore, err)
	}

	res := &QueryResult{Answer: FallbackAnswer, Sources: make([]model.Source, 0, len(hits))}
	if len(hits) > 0 {
		passages := make([]string, 0, len(hits))
		for _, h := range hits {
			passages = append(passages, h.Chunk.Text)
			res.Sources = append(res.Sources, toSource(h))
		}
		gen, err := s.manager.Answer(ctx, s.settings.Generator, text, passages)
		if err != nil {
			return nil, fmt.Errorf("synthesize answer: %w", err)
		}
		if gen.Text != "" {
			res.Answer = gen.Text
		}
		res.InputTokens = gen.Usage.InputTokens
		res.OutputTokens = gen.Usage.OutputTokens
	}
	res.ConfidenceScore = model.Confidence(res.Sources)
	res.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	event := &model.QueryEvent{
		Timestamp:       timeutil.NowMillis(),
		SessionID:       sessionID,
		QueryText:       text,
		AnswerText:      res.Answer,
		Sources:         res.Sources,
		ConfidenceScore: res.ConfidenceScore,
		LatencyMs:       res.LatencyMs,
		InputTokens:     res.InputTokens,
		OutputTokens:    res.OutputTokens,
	}
	if err := s.events.Append(ctx, event); err != nil {
		logger.Error("append query event failed", zap.Error(err))
	}
	if sessionID != "" {
		s.recordExchange(ctx, sessionID, text, res)
	}
	return res, nil
}

func toSource(h model.ChunkHit) model.Source {
	name := h.Chunk.Filename
	if name == "" {
		name = unknownFilename
	}
	return model.Source{Filename: name, PageLabel: h.Chunk.PageLabel, Score: h.Score, Text: snippet(h.Chunk.Text)}
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetChars {
		runes = runes[:snippetChars]
	}
	return string(runes) + "..."
}

func (s *QueryService) recordExchange(ctx context.Context, sessionID, question string, res *QueryResult) {
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	if _, err := s.sessions.AppendMessage(ctx, sessionID, model.RoleUser, question, nil); err != nil {
		logger.Error("append user message failed", zap.Error(err))
		return
	}
	if _, err := s.sessions.AppendMessage(ctx, sessionID, model.RoleAssistant, res.Answer, res.Sources); err != nil {
		logger.Error("append assistant message failed", zap.Error(err))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enrichTimeout)
		defer cancel()
		s.enrich(ectx, sessionID, question, res.Answer)
	}()
}

// enrich names the session after its first exchange and refreshes the summary after
// every exchange. Failures only cost metadata.
func (s *QueryService) enrich(ctx context.Context, sessionID, question, answer string) {
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	msgs, err := s.sessions.Messages(ctx, sessionID)
	if err != nil {
		logger.Debug("load messages for enrichment failed", zap.Error(err))
		return
	}
	if len(msgs) <= 2 {
		title := fallbackTitle(question)
		if s.manager.Configured() {
			if t, err := s.manager.Title(ctx, question, answer); err == nil {
				title = t
			} else {
				logger.Debug("generate session title failed", zap.Error(err))
			}
		}
		if err := s.sessions.UpdateTitle(ctx, sessionID, title); err != nil {
			logger.Debug("update session title failed", zap.Error(err))
		}
	}
	if !s.manager.Configured() {
		return
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	summary, err := s.manager.Summarize(ctx, sb.String())
	if err != nil {
		logger.Debug("summarize session failed", zap.Error(err))
		return
	}
	if err := s.sessions.UpdateSummary(ctx, sessionID, summary); err != nil {
		logger.Debug("update session summary failed", zap.Error(err))
	}
}

func fallbackTitle(question string) string {
	runes := []rune(strings.TrimSpace(question))
	if len(runes) <= titleChars {
		return string(runes)
	}
	return string(runes[:titleChars]) + "..."
}

// Wait blocks until background enrichment has finished.
func (s *QueryService) Wait() {
	s.wg.Wait()
}
