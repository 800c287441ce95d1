package lifecycle

import (
	"context"

	"github.com/xxxsen/ragkb/internal/filestore"
)

type SessionRegistry interface {
	LastActive(ctx context.Context, sessionID string) (int64, bool, error)
	Delete(ctx context.Context, sessionID string) error
	ClearAll(ctx context.Context) error
}

type VectorIndex interface {
	DeleteBySession(ctx context.Context, sessionID string) error
}

type FileTree interface {
	ListDirs(ctx context.Context, prefix string) ([]filestore.DirInfo, error)
	RemoveAll(ctx context.Context, prefix string) error
}
