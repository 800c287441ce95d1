package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragkb/internal/filestore"
	"github.com/xxxsen/ragkb/internal/model"
)

type fakeEvents struct {
	events []model.QueryEvent
	err    error
}

func (f *fakeEvents) ListBetween(ctx context.Context, start, end int64) ([]model.QueryEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.QueryEvent, 0)
	for _, ev := range f.events {
		if ev.Timestamp >= start && ev.Timestamp <= end {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) CountBetween(ctx context.Context, start, end int64) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, ev := range f.events {
		if ev.Timestamp >= start && ev.Timestamp < end {
			count++
		}
	}
	return count, nil
}

type fakeFiles struct {
	files []filestore.FileInfo
	err   error
}

func (f *fakeFiles) Walk(ctx context.Context, prefix string) ([]filestore.FileInfo, error) {
	return f.files, f.err
}

var fixedNow = time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

func event(ts time.Time, session string, latency float64, score float64) model.QueryEvent {
	return model.QueryEvent{Timestamp: ts.UnixMilli(), SessionID: session, LatencyMs: latency, ConfidenceScore: score, InputTokens: 10, OutputTokens: 5}
}

func newTestAggregator(events *fakeEvents, files *fakeFiles) *Aggregator {
	var fs FileSource
	if files != nil {
		fs = files
	}
	return NewAggregator(events, fs, time.UTC, WithClock(func() time.Time { return fixedNow }))
}

func sumInts(vals []int) int {
	total := 0
	for _, v := range vals {
		total += v
	}
	return total
}

func TestAggregateToday(t *testing.T) {
	midnight := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	events := &fakeEvents{events: []model.QueryEvent{
		event(midnight.Add(70*time.Minute), "a", 100, 0.2),
		event(midnight.Add(110*time.Minute), "b", 151, 0.8),
		event(fixedNow.Add(-time.Minute), "a", 300, 0.5),
		event(midnight.Add(-12*time.Hour), "a", 10, 0.1),
	}}
	report := newTestAggregator(events, nil).Aggregate(context.Background(), RangeRequest{Range: "today"})

	require.Equal(t, "today", report.RangeType)
	require.Equal(t, model.GranularityHour, report.Granularity)
	require.Len(t, report.Labels, 15)
	require.Equal(t, "00:00", report.Labels[0])
	require.Equal(t, "14:00", report.Labels[14])
	require.Len(t, report.Queries, 15)
	require.Equal(t, 2, report.Queries[1])
	require.Equal(t, 2, report.Sessions[1])
	require.Equal(t, 125.5, report.Latency[1])
	require.Equal(t, 1, report.Queries[14])
	require.Equal(t, 0.0, report.Latency[0])
	require.Equal(t, report.QueriesTotal, sumInts(report.Queries))
	require.Equal(t, 3, report.QueriesTotal)
	require.Equal(t, 2, report.SessionsTotal)
	require.Equal(t, 183.67, report.LatencyAvg)
	require.Equal(t, 0.5, report.ConfidenceAvg)
	require.Equal(t, int64(30), report.InputTokens)
	require.Equal(t, int64(15), report.OutputTokens)
	require.Equal(t, "vs yesterday", report.TrendLabelQueries)
	require.Equal(t, "vs yesterday", report.TrendLabelVolume)
	require.Equal(t, 200.0, report.TrendQueries)
}

func TestAggregateLongRangeComparesDailyRate(t *testing.T) {
	start := fixedNow.Add(-30 * day)
	list := make([]model.QueryEvent, 0)
	for i := 0; i < 90; i++ {
		list = append(list, event(start.Add(time.Duration(i)*7*time.Hour), "s", 10, 0.5))
	}
	for i := 0; i < 14; i++ {
		list = append(list, event(start.Add(-time.Duration(i+1)*10*time.Hour), "old", 10, 0.5))
	}
	report := newTestAggregator(&fakeEvents{events: list}, nil).Aggregate(context.Background(), RangeRequest{Range: "30d"})

	require.Equal(t, model.GranularityDay, report.Granularity)
	require.Len(t, report.Queries, 31)
	require.Equal(t, 90, report.QueriesTotal)
	require.Equal(t, 90, sumInts(report.Queries))
	require.Equal(t, "vs last week", report.TrendLabelQueries)
	require.Equal(t, 50.0, report.TrendQueries)
	require.Equal(t, "10 Apr", report.Labels[0])
}

func TestAggregateCustomRanges(t *testing.T) {
	agg := newTestAggregator(&fakeEvents{}, nil)
	ctx := context.Background()

	report := agg.Aggregate(ctx, RangeRequest{Range: "custom", Start: "2024-05-01T00:00:00", End: "2024-05-04T00:00:00"})
	require.Equal(t, "custom", report.RangeType)
	require.Equal(t, model.GranularityDay, report.Granularity)
	require.Len(t, report.Labels, 4)
	require.Equal(t, "vs prev 3d", report.TrendLabelQueries)
	require.Equal(t, 0.0, report.TrendQueries)

	report = agg.Aggregate(ctx, RangeRequest{Range: "custom", Start: "2024-05-09T20:00:00Z"})
	require.Equal(t, model.GranularityHour, report.Granularity)
	require.Equal(t, "vs prev 1d", report.TrendLabelQueries)
	require.Equal(t, fixedNow.UnixMilli(), report.WindowEnd)

	for _, bad := range []RangeRequest{
		{Range: "custom", Start: "not-a-date"},
		{Range: "custom"},
		{Range: "custom", Start: "2024-05-04", End: "2024-05-01"},
		{Range: "yesterday"},
	} {
		report = agg.Aggregate(ctx, bad)
		require.Equal(t, "7d", report.RangeType, "%+v", bad)
		require.Equal(t, fixedNow.Add(-7*day).UnixMilli(), report.WindowStart)
		require.Equal(t, "vs last week", report.TrendLabelQueries)
	}
}

func TestAggregateShortNamedRange(t *testing.T) {
	w := ResolveWindow(RangeRequest{Range: "7d"}, fixedNow, time.UTC)
	require.Equal(t, 8, w.Buckets())
	basis := newTestAggregator(&fakeEvents{}, nil).basis(Window{RangeType: "7d", Start: fixedNow.Add(-48 * time.Hour), End: fixedNow})
	require.Equal(t, "vs prev period", basis.label)
}

func TestAggregateVolume(t *testing.T) {
	midnight := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	files := &fakeFiles{files: []filestore.FileInfo{
		{Key: "static/a.pdf", Size: 100, ModTime: midnight.Add(30 * time.Minute)},
		{Key: "uploads/s1/b.txt", Size: 50, ModTime: midnight.Add(5 * time.Hour)},
		{Key: "uploads/s2/c.txt", Size: 75, ModTime: midnight.Add(-2 * time.Hour)},
		{Key: "uploads/s3/d.txt", Size: 999, ModTime: midnight.Add(-48 * time.Hour)},
	}}
	report := newTestAggregator(&fakeEvents{}, files).Aggregate(context.Background(), RangeRequest{Range: "today"})
	require.Equal(t, int64(150), report.VolumeTotal)
	require.Equal(t, int64(100), report.Ingestion[0])
	require.Equal(t, int64(50), report.Ingestion[5])
	var sum int64
	for _, v := range report.Ingestion {
		sum += v
	}
	require.Equal(t, report.VolumeTotal, sum)
	require.Equal(t, 100.0, report.TrendVolume)

	files.err = errors.New("disk gone")
	report = newTestAggregator(&fakeEvents{}, files).Aggregate(context.Background(), RangeRequest{Range: "today"})
	require.Equal(t, int64(0), report.VolumeTotal)
	require.Len(t, report.Ingestion, 15)
}

func TestAggregateFailureReturnsZeroReport(t *testing.T) {
	report := newTestAggregator(&fakeEvents{err: errors.New("db down")}, nil).Aggregate(context.Background(), RangeRequest{Range: "30d"})
	require.NotNil(t, report)
	require.Equal(t, "30d", report.RangeType)
	require.Equal(t, 0, report.QueriesTotal)
	require.NotNil(t, report.Labels)
	require.NotNil(t, report.Queries)
	require.Equal(t, 0.0, report.TrendQueries)
}

func TestAggregateBucketsCoverWindowEdgesWithSubMillisecondClock(t *testing.T) {
	now := time.Date(2024, 5, 10, 14, 30, 0, 750000, time.UTC)
	for _, tc := range []struct {
		rng   string
		start time.Time
	}{
		{"7d", now.Add(-7 * day)},
		{"today", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)},
	} {
		t.Run(tc.rng, func(t *testing.T) {
			events := &fakeEvents{events: []model.QueryEvent{
				event(tc.start, "a", 100, 0.5),
				event(now, "b", 200, 0.7),
			}}
			agg := NewAggregator(events, nil, time.UTC, WithClock(func() time.Time { return now }))
			report := agg.Aggregate(context.Background(), RangeRequest{Range: tc.rng})
			require.Equal(t, 2, report.QueriesTotal)
			require.Equal(t, report.QueriesTotal, sumInts(report.Queries))
			require.Equal(t, 1, report.Queries[0])
			require.Equal(t, 1, report.Queries[len(report.Queries)-1])
		})
	}
}

func TestPercentiles(t *testing.T) {
	p50, p90 := Percentiles(nil)
	require.Equal(t, 0.0, p50)
	require.Equal(t, 0.0, p90)

	p50, p90 = Percentiles([]float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1})
	require.Equal(t, 0.6, p50)
	require.Equal(t, 1.0, p90)

	p50, p90 = Percentiles([]float64{0.456})
	require.Equal(t, 0.46, p50)
	require.Equal(t, 0.46, p90)
}

func TestTrend(t *testing.T) {
	require.Equal(t, 0.0, Trend(0, 0))
	require.Equal(t, 100.0, Trend(3, 0))
	require.Equal(t, -50.0, Trend(1, 2))
	require.Equal(t, 33.3, Trend(4, 3))
}
