package visibility

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/model"
)

func TestBuildWithoutSessionOnlyStatic(t *testing.T) {
	p := Build("  ")
	require.False(t, p.IsZero())
	require.True(t, p.Match(map[string]string{FieldCategory: "static"}))
	require.False(t, p.Match(map[string]string{FieldCategory: "user", FieldSessionID: "a"}))
	require.False(t, p.Match(map[string]string{FieldCategory: "user"}))
}

func TestBuildWithSession(t *testing.T) {
	p := Build("a")
	cases := []struct {
		name string
		meta map[string]string
		want bool
	}{
		{"static", map[string]string{FieldCategory: "static"}, true},
		{"own", map[string]string{FieldCategory: "user", FieldSessionID: "a"}, true},
		{"other", map[string]string{FieldCategory: "user", FieldSessionID: "b"}, false},
		{"untagged", map[string]string{FieldCategory: "user", FieldSessionID: ""}, true},
		{"missing key", map[string]string{FieldCategory: "user"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, p.Match(tc.meta))
		})
	}
}

func TestBuildAgreesWithPolicy(t *testing.T) {
	metas := []map[string]string{
		{FieldCategory: "static"},
		{FieldCategory: "user", FieldSessionID: "a"},
		{FieldCategory: "user", FieldSessionID: "b"},
		{FieldCategory: "user"},
	}
	for _, session := range []string{"", "a", "b", "c"} {
		p := Build(session)
		for _, meta := range metas {
			require.Equal(t, Resolve(meta).VisibleTo(session), p.Match(meta), "session=%q meta=%v", session, meta)
		}
	}
}

func TestTagFor(t *testing.T) {
	p, defaulted := TagFor(model.CategoryStatic, "abc")
	require.Equal(t, PolicyStatic, p.Kind)
	require.False(t, defaulted)

	p, defaulted = TagFor(model.CategoryUser, "")
	require.Equal(t, Tagged(DefaultSessionID), p)
	require.True(t, defaulted)

	chunk := &model.Chunk{SessionID: "leftover"}
	Static().Apply(chunk)
	require.Equal(t, model.CategoryStatic, chunk.Category)
	require.Empty(t, chunk.SessionID)

	Tagged("s1").Apply(chunk)
	require.Equal(t, model.CategoryUser, chunk.Category)
	require.Equal(t, "s1", chunk.SessionID)
}
