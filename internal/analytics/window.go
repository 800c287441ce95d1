package analytics

import (
	"strings"
	"time"

	"github.com/xxxsen/ragkb/internal/model"
)

const (
	RangeToday  = "today"
	Range7D     = "7d"
	Range30D    = "30d"
	RangeCustom = "custom"

	hourlyLimit = 25 * time.Hour
	day         = 24 * time.Hour
)

// RangeRequest is the raw caller input; Start and End are ISO 8601 strings for custom ranges.
type RangeRequest struct {
	Range string
	Start string
	End   string
}

// Window is a resolved, inclusive aggregation window.
type Window struct {
	RangeType   string
	Start       time.Time
	End         time.Time
	Granularity string
}

func (w Window) Step() time.Duration {
	if w.Granularity == model.GranularityHour {
		return time.Hour
	}
	return day
}

// Buckets is the number of contiguous buckets from Start stepping by Step while <= End.
func (w Window) Buckets() int {
	if w.End.Before(w.Start) {
		return 0
	}
	return int(w.End.Sub(w.Start)/w.Step()) + 1
}

// Index returns the bucket a timestamp falls into, or -1.
func (w Window) Index(ts time.Time) int {
	if ts.Before(w.Start) || ts.After(w.End) {
		return -1
	}
	idx := int(ts.Sub(w.Start) / w.Step())
	if idx >= w.Buckets() {
		return -1
	}
	return idx
}

func (w Window) Labels(loc *time.Location) []string {
	n := w.Buckets()
	layout := "02 Jan"
	if w.Granularity == model.GranularityHour {
		layout = "15:04"
	}
	labels := make([]string, 0, n)
	for i := 0; i < n; i++ {
		labels = append(labels, w.Start.Add(time.Duration(i)*w.Step()).In(loc).Format(layout))
	}
	return labels
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISO(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveWindow turns a range request into a concrete window. Anything it cannot
// interpret falls back to the trailing 7 days.
func ResolveWindow(req RangeRequest, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	// Events are stored in unix ms; bounds finer than that would drop edge events.
	now = now.In(loc).Truncate(time.Millisecond)
	w := Window{RangeType: strings.ToLower(strings.TrimSpace(req.Range)), End: now}
	switch w.RangeType {
	case RangeToday:
		w.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case Range30D:
		w.Start = now.Add(-30 * day)
	case RangeCustom:
		start, ok := parseISO(req.Start, loc)
		end := now
		if ok && strings.TrimSpace(req.End) != "" {
			end, ok = parseISO(req.End, loc)
		}
		if !ok || end.Before(start) {
			return fallbackWindow(now)
		}
		w.Start, w.End = start.Truncate(time.Millisecond), end.Truncate(time.Millisecond)
	case Range7D:
		w.Start = now.Add(-7 * day)
	default:
		return fallbackWindow(now)
	}
	w.Granularity = granularity(w.Start, w.End)
	return w
}

func fallbackWindow(now time.Time) Window {
	start := now.Add(-7 * day)
	return Window{RangeType: Range7D, Start: start, End: now, Granularity: granularity(start, now)}
}

func granularity(start, end time.Time) string {
	if end.Sub(start) <= hourlyLimit {
		return model.GranularityHour
	}
	return model.GranularityDay
}
