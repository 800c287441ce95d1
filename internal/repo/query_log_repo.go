package repo

import (
	"context"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragkb/internal/model"
)

var queryLogFields = []string{
	"id", "timestamp", "session_id", "query_text", "answer_text", "sources",
	"confidence_score", "latency_ms", "input_tokens", "output_tokens",
}

// QueryLogRepo is the append-only event log. Nothing here deletes rows.
type QueryLogRepo struct {
	db *DB
}

func NewQueryLogRepo(db *DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

func (r *QueryLogRepo) Append(ctx context.Context, event *model.QueryEvent) error {
	raw, err := encodeSources(event.Sources)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"timestamp":        event.Timestamp,
		"session_id":       event.SessionID,
		"query_text":       event.QueryText,
		"answer_text":      event.AnswerText,
		"sources":          raw,
		"confidence_score": event.ConfidenceScore,
		"latency_ms":       event.LatencyMs,
		"input_tokens":     event.InputTokens,
		"output_tokens":    event.OutputTokens,
	}
	sqlStr, args, err := builder.BuildInsert("query_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.exec(ctx, sqlStr, args...)
	return err
}

// ListBetween returns events with start <= timestamp <= end, oldest first.
func (r *QueryLogRepo) ListBetween(ctx context.Context, start, end int64) ([]model.QueryEvent, error) {
	where := map[string]interface{}{
		"timestamp >=": start,
		"timestamp <=": end,
		"_orderby":     "timestamp asc, id asc",
	}
	return r.list(ctx, where)
}

// CountBetween counts events with start <= timestamp < end.
func (r *QueryLogRepo) CountBetween(ctx context.Context, start, end int64) (int, error) {
	where := map[string]interface{}{
		"timestamp >=": start,
		"timestamp <":  end,
	}
	sqlStr, args, err := builder.BuildSelect("query_logs", where, []string{"COUNT(1)"})
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.queryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *QueryLogRepo) list(ctx context.Context, where map[string]interface{}) ([]model.QueryEvent, error) {
	sqlStr, args, err := builder.BuildSelect("query_logs", where, queryLogFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.QueryEvent, 0)
	for rows.Next() {
		var ev model.QueryEvent
		var raw string
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.SessionID, &ev.QueryText, &ev.AnswerText, &raw,
			&ev.ConfidenceScore, &ev.LatencyMs, &ev.InputTokens, &ev.OutputTokens); err != nil {
			return nil, err
		}
		ev.Sources = decodeSources(raw)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func decodeSources(raw string) []model.Source {
	sources := make([]model.Source, 0)
	if raw == "" {
		return sources
	}
	_ = json.Unmarshal([]byte(raw), &sources)
	return sources
}

func encodeSources(sources []model.Source) (string, error) {
	if sources == nil {
		sources = []model.Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
