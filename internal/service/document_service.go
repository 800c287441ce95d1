package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/extract"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

const (
	DocumentStatusReady     = "Ready"
	DocumentStatusProcessed = "Processed"
)

type DocumentService struct {
	files  filestore.Store
	layout filestore.Layout
	loc    *time.Location
}

func NewDocumentService(files filestore.Store, layout filestore.Layout, loc *time.Location) *DocumentService {
	if loc == nil {
		loc = time.Local
	}
	return &DocumentService{files: files, layout: layout, loc: loc}
}

// List returns shared documents followed by every session's uploads.
func (s *DocumentService) List(ctx context.Context) ([]model.DocumentInfo, error) {
	docs := make([]model.DocumentInfo, 0)
	static, err := s.files.Walk(ctx, s.layout.StaticPrefix)
	if err != nil {
		return nil, fmt.Errorf("list static documents: %w", err)
	}
	for _, f := range static {
		if f.Key != s.layout.StaticPrefix+"/"+f.Name() {
			continue
		}
		docs = append(docs, s.info(f, model.StaticSessionID, DocumentStatusReady))
	}
	uploads, err := s.files.Walk(ctx, s.layout.UploadPrefix)
	if err != nil {
		return nil, fmt.Errorf("list uploaded documents: %w", err)
	}
	for _, f := range uploads {
		sessionID, ok := s.layout.SessionOf(f.Key)
		if !ok || f.Key != s.layout.UploadPrefix+"/"+sessionID+"/"+f.Name() {
			continue
		}
		docs = append(docs, s.info(f, sessionID, DocumentStatusProcessed))
	}
	return docs, nil
}

func (s *DocumentService) info(f filestore.FileInfo, sessionID, status string) model.DocumentInfo {
	return model.DocumentInfo{
		Filename:   f.Name(),
		Size:       f.Size,
		UploadDate: f.ModTime.In(s.loc).Format("2006-01-02"),
		SessionID:  sessionID,
		Status:     status,
	}
}

// locate prefers the session's own copy and falls back to the shared one.
func (s *DocumentService) locate(ctx context.Context, filename, sessionID string) (string, error) {
	keys := make([]string, 0, 2)
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" && sessionID != model.StaticSessionID {
		key, err := s.layout.UploadKey(sessionID, filename)
		if err != nil {
			return "", err
		}
		keys = append(keys, key)
	}
	key, err := s.layout.StaticKey(filename)
	if err != nil {
		return "", err
	}
	keys = append(keys, key)
	for _, k := range keys {
		if _, err := s.files.Stat(ctx, k); err == nil {
			return k, nil
		} else if !appErr.IsNotFound(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("document %s not found for session %q or static: %w", filename, sessionID, appErr.ErrNotFound)
}

// PageContext returns the text of a page and its neighbours. Pages are 1-based.
func (s *DocumentService) PageContext(ctx context.Context, filename string, page int, sessionID string) (*model.PageContext, error) {
	name, err := filestore.SafeName(filename)
	if err != nil {
		return nil, err
	}
	key, err := s.locate(ctx, name, sessionID)
	if err != nil {
		return nil, err
	}
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, err
	}
	pages, err := extract.Pages(name, data)
	if err != nil {
		logutil.GetLogger(ctx).Warn("extract document pages failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	total := len(pages)
	if page < 1 || page > total {
		return nil, fmt.Errorf("page %d out of range [1, %d]: %w", page, total, appErr.ErrRange)
	}
	out := &model.PageContext{
		Filename:    name,
		TotalPages:  total,
		CurrentPage: model.PageText{Number: page, Text: pages[page-1]},
	}
	if page > 1 {
		out.PrevPage = &model.PageText{Number: page - 1, Text: pages[page-2]}
	}
	if page < total {
		out.NextPage = &model.PageText{Number: page + 1, Text: pages[page]}
	}
	return out, nil
}
