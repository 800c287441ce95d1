package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

func TestSessionCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.Create(ctx, "s1", "")
	require.NoError(t, err)
	require.Equal(t, DefaultSessionTitle, s.Title)

	s, err = f.sessions.Create(ctx, "s1", "Another title")
	require.NoError(t, err)
	require.Equal(t, DefaultSessionTitle, s.Title)

	_, err = f.sessions.Create(ctx, " ", "x")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestSessionAppendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name    string
		session string
		role    string
		wantErr error
	}{
		{name: "user", session: "s1", role: model.RoleUser},
		{name: "assistant", session: "s1", role: model.RoleAssistant},
		{name: "bad role", session: "s1", role: "system", wantErr: appErr.ErrInvalid},
		{name: "missing session", session: "", role: model.RoleUser, wantErr: appErr.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sessions.AppendMessage(ctx, tt.session, tt.role, tt.name, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
	msgs, err := f.sessions.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Content)
	require.Equal(t, "assistant", msgs[1].Content)

	s, err := f.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, msgs[1].Timestamp, s.LastActiveAt)
}

func TestSessionListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := f.sessions.Create(ctx, id, "")
		require.NoError(t, err)
	}
	_, err := f.sessions.AppendMessage(ctx, "a", model.RoleUser, "latest", nil)
	require.NoError(t, err)

	list, err := f.sessions.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.NoError(t, f.sessions.Delete(ctx, "a"))
	f.deleter.Wait()
	list, err = f.sessions.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		require.NotEqual(t, "a", s.SessionID)
	}
	msgs, err := f.sessions.Messages(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, msgs)
}
