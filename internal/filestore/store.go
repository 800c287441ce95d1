package filestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/ragkb/internal/config"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

// Store is the document file tree. Keys are slash separated and relative to the root.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (*FileInfo, error)
	// Walk lists every file under prefix, recursively.
	Walk(ctx context.Context, prefix string) ([]FileInfo, error)
	// ListDirs lists the immediate sub folders of prefix.
	ListDirs(ctx context.Context, prefix string) ([]DirInfo, error)
	RemoveAll(ctx context.Context, prefix string) error
}

type FileInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

func (f FileInfo) Name() string {
	return path.Base(f.Key)
}

type DirInfo struct {
	Name    string
	ModTime time.Time
}

type Factory func(cfg config.FileStoreConfig) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type: %s", cfg.Type)
	}
	return factory(cfg)
}

func cleanKey(key string) (string, error) {
	key = strings.Trim(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", fmt.Errorf("empty file key: %w", appErr.ErrInvalid)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid file key %q: %w", key, appErr.ErrInvalid)
		}
	}
	return key, nil
}
