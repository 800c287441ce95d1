package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	report := NewHealthService(true).AddProbe("database", ok).AddProbe("vector_store", ok).Check(context.Background())
	require.Equal(t, HealthOK, report.Status)
	require.Equal(t, "up", report.Services["database"])
	require.Equal(t, "configured", report.Services["ai"])

	report = NewHealthService(false).AddProbe("database", ok).AddProbe("queue", down).Check(context.Background())
	require.Equal(t, HealthDegraded, report.Status)
	require.Equal(t, "down: connection refused", report.Services["queue"])
	require.Equal(t, "missing_key", report.Services["ai"])
}
