package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/extract"
	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/vectorstore"
	"github.com/xxxsen/ragkb/internal/visibility"
)

// Validate rejects filenames the extractor cannot read. It runs before any side effect.
func Validate(filename string) error {
	if !extract.Supported(filename) {
		return fmt.Errorf("%q: only .txt, .md and .pdf are accepted: %w", filename, appErr.ErrUnsupportedFormat)
	}
	return nil
}

type Request struct {
	Filename  string
	Data      []byte
	Category  model.Category
	SessionID string
}

// Target is a file already placed in the tree, waiting to be indexed.
type Target struct {
	Key      string
	Filename string
	Policy   visibility.TagPolicy
}

type Router struct {
	files   filestore.Store
	layout  filestore.Layout
	vectors vectorstore.Store
}

func NewRouter(files filestore.Store, layout filestore.Layout, vectors vectorstore.Store) *Router {
	return &Router{files: files, layout: layout, vectors: vectors}
}

// Route stores the file and indexes it. There is no dedup: routing the same file
// twice yields two sets of chunks.
func (r *Router) Route(ctx context.Context, settings ai.Settings, req Request) ([]model.Chunk, error) {
	target, err := r.Place(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.Index(ctx, settings, target)
}

// Resolve validates the request and decides where the file lives, without touching storage.
func (r *Router) Resolve(ctx context.Context, filename string, category model.Category, sessionID string) (*Target, error) {
	if err := Validate(filename); err != nil {
		return nil, err
	}
	name, err := filestore.SafeName(filename)
	if err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, fmt.Errorf("category %q: %w", category, appErr.ErrInvalid)
	}
	policy, defaulted := visibility.TagFor(category, sessionID)
	if defaulted {
		logutil.GetLogger(ctx).Warn("user upload without session id, using default session",
			zap.String("filename", name), zap.String("session_id", policy.SessionID))
	}
	var key string
	if policy.Kind == visibility.PolicyStatic {
		key, err = r.layout.StaticKey(name)
	} else {
		key, err = r.layout.UploadKey(policy.SessionID, name)
	}
	if err != nil {
		return nil, err
	}
	return &Target{Key: key, Filename: name, Policy: policy}, nil
}

// Place resolves the request and writes the file to its final location.
func (r *Router) Place(ctx context.Context, req Request) (*Target, error) {
	target, err := r.Resolve(ctx, req.Filename, req.Category, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := r.files.Save(ctx, target.Key, bytes.NewReader(req.Data), int64(len(req.Data))); err != nil {
		return nil, fmt.Errorf("save %s: %w: %v", target.Key, appErr.ErrTransientStore, err)
	}
	return target, nil
}

// Index reads a placed file, embeds every page and upserts the chunks.
func (r *Router) Index(ctx context.Context, settings ai.Settings, target *Target) ([]model.Chunk, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("key", target.Key))
	if settings.Embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", appErr.ErrAIUnavailable)
	}
	rc, err := r.files.Open(ctx, target.Key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", target.Key, appErr.ErrTransientStore, err)
	}
	pages, err := extract.Pages(target.Filename, data)
	if err != nil {
		if appErr.IsRetryable(err) {
			// a file that cannot be parsed will not parse on retry either
			return nil, fmt.Errorf("extract %s: %w: %v", target.Filename, appErr.ErrInvalid, err)
		}
		return nil, err
	}
	chunks := make([]model.Chunk, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			logger.Debug("skip empty page", zap.Int("page", i+1))
			continue
		}
		vec, err := settings.Embedder.Embed(ctx, text, ai.TaskRetrievalDocument)
		if err != nil {
			return nil, fmt.Errorf("embed page %d of %s: %w", i+1, target.Filename, err)
		}
		chunk := model.Chunk{
			ID:        uuid.NewString(),
			Text:      text,
			Filename:  target.Filename,
			PageLabel: strconv.Itoa(i + 1),
			Embedding: vec,
		}
		target.Policy.Apply(&chunk)
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		logger.Warn("no text extracted, nothing indexed")
		return chunks, nil
	}
	if err := r.vectors.Upsert(ctx, chunks); err != nil {
		if appErr.IsRetryable(err) {
			return nil, fmt.Errorf("upsert %s: %w: %v", target.Filename, appErr.ErrTransientStore, err)
		}
		return nil, err
	}
	logger.Info("document indexed", zap.Int("chunks", len(chunks)),
		zap.String("category", string(chunks[0].Category)), zap.String("session_id", chunks[0].SessionID))
	return chunks, nil
}
