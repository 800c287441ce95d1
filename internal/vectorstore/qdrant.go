package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/visibility"
)

// qdrantStore talks to the Qdrant REST API. Payload keys mirror the chunk metadata.
type qdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func init() {
	Register("qdrant", createQdrantStore)
}

func createQdrantStore(cfg config.VectorStoreConfig, deps Deps) (Store, error) {
	if cfg.Qdrant.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	timeout := time.Duration(cfg.Qdrant.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewQdrant(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Collection, cfg.Dimension, &http.Client{Timeout: timeout}), nil
}

func NewQdrant(url, apiKey, collection string, dimension int, client *http.Client) Store {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &qdrantStore{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		collection: collection,
		dimension:  dimension,
		client:     client,
	}
}

func (s *qdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *qdrantStore) EnsureCollection(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	index := map[string]any{"field_name": visibility.FieldSessionID, "field_schema": "keyword"}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL("/index?wait=true"), index, nil)
	return err
}

func (s *qdrantStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkChunks(chunks, s.dimension); err != nil {
		return err
	}
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, map[string]any{
			"id":     c.ID,
			"vector": c.Embedding,
			"payload": map[string]any{
				"text":                    c.Text,
				"filename":                c.Filename,
				"page_label":              c.PageLabel,
				visibility.FieldCategory:  string(c.Category),
				visibility.FieldSessionID: c.SessionID,
			},
		})
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

// filter renders the predicate as a Qdrant "should" clause. An empty session matches
// both a missing key and an empty string.
func filter(pred visibility.Predicate) map[string]any {
	should := make([]map[string]any, 0, len(pred.Any)+1)
	for _, c := range pred.Any {
		switch c.Op {
		case visibility.OpEq:
			should = append(should, map[string]any{"key": c.Field, "match": map[string]any{"value": c.Value}})
		case visibility.OpEmpty:
			should = append(should,
				map[string]any{"is_empty": map[string]any{"key": c.Field}},
				map[string]any{"key": c.Field, "match": map[string]any{"value": ""}},
			)
		}
	}
	return map[string]any{"should": should}
}

func (s *qdrantStore) Search(ctx context.Context, vector []float32, topK int, pred visibility.Predicate) ([]model.ChunkHit, error) {
	if err := checkSearch(vector, s.dimension, pred); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter":       filter(pred),
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]model.ChunkHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := model.Chunk{
			ID:        fmt.Sprint(r.ID),
			Text:      payloadString(r.Payload, "text"),
			Filename:  payloadString(r.Payload, "filename"),
			PageLabel: payloadString(r.Payload, "page_label"),
			Category:  model.Category(payloadString(r.Payload, visibility.FieldCategory)),
			SessionID: payloadString(r.Payload, visibility.FieldSessionID),
		}
		hits = append(hits, model.ChunkHit{Chunk: chunk, Score: r.Score})
	}
	return hits, nil
}

func (s *qdrantStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": visibility.FieldSessionID, "match": map[string]any{"value": sessionID}},
			},
		},
	}
	_, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
	return err
}

func (s *qdrantStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, s.url+"/collections", nil, nil)
	return err
}

func (s *qdrantStore) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w: %v", method, url, appErr.ErrTransientStore, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
