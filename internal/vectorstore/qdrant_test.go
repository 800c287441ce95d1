package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/visibility"
)

type recordedCall struct {
	method string
	path   string
	body   map[string]any
}

func newQdrantFake(t *testing.T) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/docs":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/collections/docs/points/search":
			_, _ = w.Write([]byte(`{"result":[{"id":"c1","score":0.9,"payload":{"text":"t","filename":"f.pdf","page_label":"2","category":"user","session_id":"abc"}}]}`))
		default:
			_, _ = w.Write([]byte(`{"result":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestQdrantEnsureCreatesMissingCollection(t *testing.T) {
	srv, calls := newQdrantFake(t)
	store := NewQdrant(srv.URL, "", "docs", 2, srv.Client())
	require.NoError(t, store.EnsureCollection(context.Background()))
	got := calls()
	require.Len(t, got, 3)
	require.Equal(t, http.MethodPut, got[1].method)
	require.Equal(t, "/collections/docs", got[1].path)
	require.Equal(t, "/collections/docs/index", got[2].path)
}

func TestQdrantSearchSendsFilter(t *testing.T) {
	srv, calls := newQdrantFake(t)
	store := NewQdrant(srv.URL, "", "docs", 2, srv.Client())
	hits, err := store.Search(context.Background(), []float32{1, 0}, 3, visibility.Build("abc"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c1", hits[0].Chunk.ID)
	require.Equal(t, "2", hits[0].Chunk.PageLabel)
	require.Equal(t, "abc", hits[0].Chunk.SessionID)

	body := calls()[0].body
	should := body["filter"].(map[string]any)["should"].([]any)
	// static, own session, missing key, empty string
	require.Len(t, should, 4)
}

func TestQdrantDeleteBySession(t *testing.T) {
	srv, calls := newQdrantFake(t)
	store := NewQdrant(srv.URL, "", "docs", 2, srv.Client())
	require.NoError(t, store.DeleteBySession(context.Background(), "abc"))
	got := calls()
	require.Len(t, got, 1)
	require.Equal(t, "/collections/docs/points/delete", got[0].path)
	must := got[0].body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
}
