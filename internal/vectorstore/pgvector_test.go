package vectorstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/testutil"
	"github.com/xxxsen/ragkb/internal/vectorstore"
	"github.com/xxxsen/ragkb/internal/visibility"
)

func TestPGVectorStore(t *testing.T) {
	db, cleanup := testutil.OpenPostgresDB(t)
	defer cleanup()
	ctx := context.Background()

	store, err := vectorstore.New(config.VectorStoreConfig{Type: "pgvector", Collection: "chunks_test", Dimension: 2},
		vectorstore.Deps{DB: db.DB, Driver: db.Driver})
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx))

	session := uuid.NewString()
	require.NoError(t, store.Upsert(ctx, []model.Chunk{
		{ID: uuid.NewString(), Text: "mine", Filename: "m.txt", PageLabel: "1", Category: model.CategoryUser, SessionID: session, Embedding: []float32{1, 0}},
		{ID: uuid.NewString(), Text: "theirs", Filename: "t.txt", PageLabel: "1", Category: model.CategoryUser, SessionID: uuid.NewString(), Embedding: []float32{1, 0}},
	}))

	hits, err := store.Search(ctx, []float32{1, 0}, 10, visibility.Build(session))
	require.NoError(t, err)
	for _, h := range hits {
		require.True(t, h.Chunk.Category == model.CategoryStatic || h.Chunk.SessionID == session || h.Chunk.SessionID == "")
	}

	require.NoError(t, store.DeleteBySession(ctx, session))
	hits, err = store.Search(ctx, []float32{1, 0}, 10, visibility.Build(session))
	require.NoError(t, err)
	for _, h := range hits {
		require.NotEqual(t, session, h.Chunk.SessionID)
	}
}
