package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"

	probeTimeout = 3 * time.Second
)

type HealthReport struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

type Probe func(ctx context.Context) error

type namedProbe struct {
	name  string
	probe Probe
}

// HealthService pings each backing store. A failing probe degrades the report
// but never fails the call.
type HealthService struct {
	probes       []namedProbe
	aiConfigured bool
}

func NewHealthService(aiConfigured bool) *HealthService {
	return &HealthService{aiConfigured: aiConfigured}
}

func (s *HealthService) AddProbe(name string, probe Probe) *HealthService {
	if probe != nil {
		s.probes = append(s.probes, namedProbe{name: name, probe: probe})
	}
	return s
}

func (s *HealthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{Status: HealthOK, Services: make(map[string]string, len(s.probes)+1)}
	var mu sync.Mutex
	eg := new(errgroup.Group)
	for _, p := range s.probes {
		p := p
		eg.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			state := "up"
			if err := p.probe(pctx); err != nil {
				state = "down: " + err.Error()
			}
			mu.Lock()
			report.Services[p.name] = state
			if state != "up" {
				report.Status = HealthDegraded
			}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	if s.aiConfigured {
		report.Services["ai"] = "configured"
	} else {
		report.Services["ai"] = "missing_key"
	}
	return report
}
