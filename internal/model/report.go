package model

const (
	GranularityHour = "hour"
	GranularityDay  = "day"
)

// TimeSeriesReport is the analytics payload. Every field is always populated, with zero
// values when there is no data, so dashboards never see missing keys.
type TimeSeriesReport struct {
	RangeType         string    `json:"range"`
	Granularity       string    `json:"granularity"`
	WindowStart       int64     `json:"window_start"`
	WindowEnd         int64     `json:"window_end"`
	Labels            []string  `json:"labels"`
	Queries           []int     `json:"queries"`
	Sessions          []int     `json:"sessions"`
	Latency           []float64 `json:"latency"`
	Ingestion         []int64   `json:"ingestion"`
	QueriesTotal      int       `json:"queries_total"`
	SessionsTotal     int       `json:"sessions_total"`
	VolumeTotal       int64     `json:"volume_total"`
	LatencyAvg        float64   `json:"latency_avg"`
	ConfidenceAvg     float64   `json:"confidence_avg"`
	P50Score          float64   `json:"p50_score"`
	P90Score          float64   `json:"p90_score"`
	InputTokens       int64     `json:"input_tokens"`
	OutputTokens      int64     `json:"output_tokens"`
	TrendQueries      float64   `json:"trend_queries"`
	TrendVolume       float64   `json:"trend_volume"`
	TrendLabelQueries string    `json:"trend_label_queries"`
	TrendLabelVolume  string    `json:"trend_label_volume"`
}

func EmptyReport(rangeType string) *TimeSeriesReport {
	return &TimeSeriesReport{
		RangeType:   rangeType,
		Granularity: GranularityDay,
		Labels:      []string{},
		Queries:     []int{},
		Sessions:    []int{},
		Latency:     []float64{},
		Ingestion:   []int64{},
	}
}
