package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/model"
)

type EventSource interface {
	ListBetween(ctx context.Context, start, end int64) ([]model.QueryEvent, error)
	CountBetween(ctx context.Context, start, end int64) (int, error)
}

type FileSource interface {
	Walk(ctx context.Context, prefix string) ([]filestore.FileInfo, error)
}

type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator builds dashboard time series from the query event log and the document tree.
type Aggregator struct {
	events EventSource
	files  FileSource
	loc    *time.Location
	now    func() time.Time
}

func NewAggregator(events EventSource, files FileSource, loc *time.Location, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	a := &Aggregator{events: events, files: files, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// trendBasis is the comparison window used for both trends.
type trendBasis struct {
	start, end time.Time
	label      string
	days       int
	rate       bool
}

func (a *Aggregator) basis(w Window) trendBasis {
	delta := w.End.Sub(w.Start)
	days := int(delta / day)
	if days < 1 {
		days = 1
	}
	if days >= 7 {
		return trendBasis{start: w.Start.Add(-7 * day), end: w.Start, label: "vs last week", days: days, rate: true}
	}
	b := trendBasis{start: w.Start.Add(-delta), end: w.Start, days: days}
	switch w.RangeType {
	case RangeToday:
		b.label = "vs yesterday"
	case RangeCustom:
		n := int(delta / day)
		if n == 0 {
			n = 1
		}
		b.label = fmt.Sprintf("vs prev %dd", n)
	default:
		b.label = "vs prev period"
	}
	return b
}

func (b trendBasis) trend(cur, prev float64) float64 {
	if b.rate {
		cur /= float64(b.days)
		prev /= 7
	}
	return Trend(cur, prev)
}

// Trend is the percentage change from prev to cur. A zero baseline reports 100 when
// anything happened and 0 otherwise.
func Trend(cur, prev float64) float64 {
	if prev > 0 {
		return round((cur-prev)/prev*100, 1)
	}
	if cur > 0 {
		return 100.0
	}
	return 0.0
}

// Aggregate never fails: read errors produce a zero report for the requested range.
func (a *Aggregator) Aggregate(ctx context.Context, req RangeRequest) *model.TimeSeriesReport {
	w := ResolveWindow(req, a.now(), a.loc)
	logger := logutil.GetLogger(ctx).With(zap.String("range", w.RangeType), zap.Time("start", w.Start), zap.Time("end", w.End))
	basis := a.basis(w)

	var (
		events    []model.QueryEvent
		prevCount int
		files     []filestore.FileInfo
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		events, err = a.events.ListBetween(ectx, w.Start.UnixMilli(), w.End.UnixMilli())
		return err
	})
	eg.Go(func() error {
		var err error
		prevCount, err = a.events.CountBetween(ectx, basis.start.UnixMilli(), basis.end.UnixMilli())
		return err
	})
	if a.files != nil {
		eg.Go(func() error {
			var err error
			files, err = a.files.Walk(ectx, "")
			if err != nil {
				logger.Warn("scan document tree for volume failed", zap.Error(err))
				files = nil
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logger.Error("aggregate analytics failed", zap.Error(err))
		return model.EmptyReport(w.RangeType)
	}

	report := a.fillQueries(w, events)
	report.TrendLabelQueries = basis.label
	report.TrendLabelVolume = basis.label
	report.TrendQueries = basis.trend(float64(report.QueriesTotal), float64(prevCount))
	a.fillVolume(report, w, basis, files)
	return report
}

func (a *Aggregator) fillQueries(w Window, events []model.QueryEvent) *model.TimeSeriesReport {
	n := w.Buckets()
	report := &model.TimeSeriesReport{
		RangeType:   w.RangeType,
		Granularity: w.Granularity,
		WindowStart: w.Start.UnixMilli(),
		WindowEnd:   w.End.UnixMilli(),
		Labels:      w.Labels(a.loc),
		Queries:     make([]int, n),
		Sessions:    make([]int, n),
		Latency:     make([]float64, n),
		Ingestion:   make([]int64, n),
	}
	bucketSessions := make([]map[string]struct{}, n)
	latencySum := make([]float64, n)
	allSessions := make(map[string]struct{})
	scores := make([]float64, 0, len(events))
	var totalLatency, totalConfidence float64

	for _, ev := range events {
		idx := w.Index(time.UnixMilli(ev.Timestamp))
		if idx >= 0 {
			report.Queries[idx]++
			if bucketSessions[idx] == nil {
				bucketSessions[idx] = make(map[string]struct{})
			}
			bucketSessions[idx][ev.SessionID] = struct{}{}
			latencySum[idx] += ev.LatencyMs
		}
		allSessions[ev.SessionID] = struct{}{}
		totalLatency += ev.LatencyMs
		totalConfidence += ev.ConfidenceScore
		scores = append(scores, ev.ConfidenceScore)
		report.InputTokens += ev.InputTokens
		report.OutputTokens += ev.OutputTokens
	}
	for i := 0; i < n; i++ {
		report.Sessions[i] = len(bucketSessions[i])
		if report.Queries[i] > 0 {
			report.Latency[i] = round(latencySum[i]/float64(report.Queries[i]), 1)
		}
	}
	report.QueriesTotal = len(events)
	report.SessionsTotal = len(allSessions)
	if len(events) > 0 {
		report.LatencyAvg = round(totalLatency/float64(len(events)), 2)
		report.ConfidenceAvg = round(totalConfidence/float64(len(events)), 2)
	}
	report.P50Score, report.P90Score = Percentiles(scores)
	return report
}

func (a *Aggregator) fillVolume(report *model.TimeSeriesReport, w Window, basis trendBasis, files []filestore.FileInfo) {
	var prev int64
	for _, f := range files {
		if idx := w.Index(f.ModTime); idx >= 0 {
			report.Ingestion[idx] += f.Size
			report.VolumeTotal += f.Size
		}
		if !f.ModTime.Before(basis.start) && f.ModTime.Before(basis.end) {
			prev += f.Size
		}
	}
	report.TrendVolume = basis.trend(float64(report.VolumeTotal), float64(prev))
}

// Percentiles returns nearest-rank p50 and p90, with the rank clamped to the last element.
func Percentiles(scores []float64) (float64, float64) {
	n := len(scores)
	if n == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	pick := func(q float64) float64 {
		idx := int(float64(n) * q)
		if idx >= n {
			idx = n - 1
		}
		return round(sorted[idx], 2)
	}
	return pick(0.5), pick(0.9)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
