package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/visibility"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pgvectorStore keeps chunks in a postgres table with a vector column.
type pgvectorStore struct {
	db        *sqlx.DB
	table     string
	dimension int
}

func init() {
	Register("pgvector", createPGVectorStore)
}

func createPGVectorStore(cfg config.VectorStoreConfig, deps Deps) (Store, error) {
	if deps.DB == nil || deps.Driver != "postgres" {
		return nil, fmt.Errorf("pgvector store needs a postgres connection")
	}
	if !identRegex.MatchString(cfg.Collection) {
		return nil, fmt.Errorf("invalid collection name: %q", cfg.Collection)
	}
	return &pgvectorStore{
		db:        sqlx.NewDb(deps.DB, "postgres"),
		table:     cfg.Collection,
		dimension: cfg.Dimension,
	}, nil
}

func (s *pgvectorStore) EnsureCollection(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			filename TEXT NOT NULL,
			page_label TEXT NOT NULL,
			category TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.table, s.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_session ON %s (session_id)", s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure collection %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *pgvectorStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkChunks(chunks, s.dimension); err != nil {
		return err
	}
	query := s.db.Rebind(fmt.Sprintf(`INSERT INTO %s (id, text, filename, page_label, category, session_id, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			filename = EXCLUDED.filename,
			page_label = EXCLUDED.page_label,
			category = EXCLUDED.category,
			session_id = EXCLUDED.session_id,
			embedding = EXCLUDED.embedding`, s.table))
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Text, c.Filename, c.PageLabel, string(c.Category), c.SessionID, pgvector.NewVector(c.Embedding)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// whereClause renders the predicate as a SQL disjunction over the chunk columns.
func whereClause(pred visibility.Predicate) (string, []interface{}) {
	parts := make([]string, 0, len(pred.Any))
	args := make([]interface{}, 0, len(pred.Any))
	for _, c := range pred.Any {
		col := c.Field
		if col != visibility.FieldCategory && col != visibility.FieldSessionID {
			continue
		}
		switch c.Op {
		case visibility.OpEq:
			parts = append(parts, col+" = ?")
			args = append(args, c.Value)
		case visibility.OpEmpty:
			parts = append(parts, "("+col+" IS NULL OR "+col+" = '')")
		}
	}
	if len(parts) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

type pgChunkRow struct {
	ID        string  `db:"id"`
	Text      string  `db:"text"`
	Filename  string  `db:"filename"`
	PageLabel string  `db:"page_label"`
	Category  string  `db:"category"`
	SessionID string  `db:"session_id"`
	Score     float64 `db:"score"`
}

func (s *pgvectorStore) Search(ctx context.Context, vector []float32, topK int, pred visibility.Predicate) ([]model.ChunkHit, error) {
	if err := checkSearch(vector, s.dimension, pred); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}
	where, whereArgs := whereClause(pred)
	vec := pgvector.NewVector(vector)
	query := fmt.Sprintf(`SELECT id, text, filename, page_label, category, session_id, 1 - (embedding <=> ?) AS score
		FROM %s WHERE %s ORDER BY embedding <=> ? LIMIT ?`, s.table, where)
	args := make([]interface{}, 0, len(whereArgs)+3)
	args = append(args, vec)
	args = append(args, whereArgs...)
	args = append(args, vec, topK)
	var rows []pgChunkRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	hits := make([]model.ChunkHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, model.ChunkHit{
			Chunk: model.Chunk{
				ID:        r.ID,
				Text:      r.Text,
				Filename:  r.Filename,
				PageLabel: r.PageLabel,
				Category:  model.Category(r.Category),
				SessionID: r.SessionID,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (s *pgvectorStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	query := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", s.table))
	_, err := s.db.ExecContext(ctx, query, sessionID)
	return err
}

func (s *pgvectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
