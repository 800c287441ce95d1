package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/repo"
	"github.com/xxxsen/ragkb/internal/testutil"
)

func TestSessionRepoCreateIfAbsent(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sessions := repo.NewSessionRepo(db)
	created, err := sessions.CreateIfAbsent(ctx, &model.Session{SessionID: "s1", Title: "first", CreatedAt: 1000})
	require.NoError(t, err)
	require.True(t, created)

	created, err = sessions.CreateIfAbsent(ctx, &model.Session{SessionID: "s1", Title: "second", CreatedAt: 2000})
	require.NoError(t, err)
	require.False(t, created)

	got, err := sessions.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "first", got.Title)
	require.Equal(t, int64(1000), got.LastActiveAt)

	_, err = sessions.Get(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSessionRepoLastActiveFollowsMessages(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sessions := repo.NewSessionRepo(db)
	messages := repo.NewMessageRepo(db)
	_, err := sessions.CreateIfAbsent(ctx, &model.Session{SessionID: "old", CreatedAt: 100})
	require.NoError(t, err)
	_, err = sessions.CreateIfAbsent(ctx, &model.Session{SessionID: "busy", CreatedAt: 50})
	require.NoError(t, err)
	require.NoError(t, messages.Append(ctx, &model.ChatMessage{SessionID: "busy", Role: model.RoleUser, Content: "hi", Timestamp: 500}))

	ts, ok, err := sessions.LastActive(ctx, "busy")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(500), ts)

	ts, ok, err = sessions.LastActive(ctx, "old")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), ts)

	_, ok, err = sessions.LastActive(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, ok)

	list, err := sessions.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "busy", list[0].SessionID)
	require.Equal(t, "old", list[1].SessionID)
}

func TestSessionRepoDeleteKeepsQueryLog(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sessions := repo.NewSessionRepo(db)
	messages := repo.NewMessageRepo(db)
	logs := repo.NewQueryLogRepo(db)

	_, err := sessions.CreateIfAbsent(ctx, &model.Session{SessionID: "s1", CreatedAt: 1})
	require.NoError(t, err)
	require.NoError(t, messages.Append(ctx, &model.ChatMessage{SessionID: "s1", Role: model.RoleUser, Content: "q", Timestamp: 2}))
	require.NoError(t, logs.Append(ctx, &model.QueryEvent{Timestamp: 2, SessionID: "s1", QueryText: "q"}))

	require.NoError(t, sessions.Delete(ctx, "s1"))

	_, err = sessions.Get(ctx, "s1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	msgs, err := messages.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, msgs)
	events, err := logs.ListBetween(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "s1", events[0].SessionID)
}

func TestSessionRepoClearAll(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sessions := repo.NewSessionRepo(db)
	messages := repo.NewMessageRepo(db)
	logs := repo.NewQueryLogRepo(db)
	for _, id := range []string{"a", "b"} {
		_, err := sessions.CreateIfAbsent(ctx, &model.Session{SessionID: id, CreatedAt: 1})
		require.NoError(t, err)
		require.NoError(t, messages.Append(ctx, &model.ChatMessage{SessionID: id, Role: model.RoleUser, Content: "x", Timestamp: 3}))
	}
	require.NoError(t, logs.Append(ctx, &model.QueryEvent{Timestamp: 3, SessionID: "a", QueryText: "x"}))

	require.NoError(t, sessions.ClearAll(ctx))
	list, err := sessions.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, list)
	n, err := logs.CountBetween(ctx, 0, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMessageRepoPreservesInsertionOrder(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()

	messages := repo.NewMessageRepo(db)
	// identical timestamps must not reorder
	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, messages.Append(ctx, &model.ChatMessage{SessionID: "s", Role: model.RoleUser, Content: content, Timestamp: 42}))
	}
	list, err := messages.ListBySession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "one", list[0].Content)
	require.Equal(t, "two", list[1].Content)
	require.Equal(t, "three", list[2].Content)
	require.NotNil(t, list[0].Sources)
}
