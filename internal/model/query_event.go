package model

type Source struct {
	Filename  string  `json:"filename"`
	PageLabel string  `json:"page_label"`
	Score     float64 `json:"score"`
	Text      string  `json:"text,omitempty"`
}

// QueryEvent is one logged question/answer exchange. Append-only.
type QueryEvent struct {
	ID              int64    `json:"id"`
	Timestamp       int64    `json:"timestamp"`
	SessionID       string   `json:"session_id"`
	QueryText       string   `json:"query_text"`
	AnswerText      string   `json:"answer_text"`
	Sources         []Source `json:"sources"`
	ConfidenceScore float64  `json:"confidence_score"`
	LatencyMs       float64  `json:"latency_ms"`
	InputTokens     int64    `json:"input_tokens"`
	OutputTokens    int64    `json:"output_tokens"`
}

// Confidence returns the top source score, or 0 when there are no sources.
func Confidence(sources []Source) float64 {
	best := 0.0
	for i, src := range sources {
		if i == 0 || src.Score > best {
			best = src.Score
		}
	}
	return best
}
