package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8000,
		"database": {"path": "/tmp/ragkb.db"},
		"file_store": {"dir": "/tmp/ragkb"},
		"vector_store": {"dimension": 768}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "static", cfg.FileStore.StaticPrefix)
	require.Equal(t, "uploads", cfg.FileStore.UploadPrefix)
	require.Equal(t, "memory", cfg.VectorStore.Type)
	require.Equal(t, "memory", cfg.TaskQueue.Type)
	require.Equal(t, DefaultMaxPending, cfg.TaskQueue.MaxPending)
	require.Equal(t, DefaultTopK, cfg.Retrieval.TopK)
	require.Equal(t, DefaultMaxAttempts, cfg.Ingest.MaxAttempts)
	require.Equal(t, DefaultReaperCron, cfg.Reaper.Cron)
	require.Equal(t, 21*24*time.Hour, cfg.Reaper.MaxAge())
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, time.Local, cfg.Location())
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing port", `{"database": {"path": "x"}, "file_store": {"dir": "x"}, "vector_store": {"dimension": 8}}`},
		{"bad timezone", `{"port": 1, "timezone": "Mars/Base", "database": {"path": "x"}, "file_store": {"dir": "x"}, "vector_store": {"dimension": 8}}`},
		{"missing dimension", `{"port": 1, "database": {"path": "x"}, "file_store": {"dir": "x"}}`},
		{"pgvector on sqlite", `{"port": 1, "database": {"path": "x"}, "file_store": {"dir": "x"}, "vector_store": {"type": "pgvector", "dimension": 8}}`},
		{"s3 without bucket", `{"port": 1, "database": {"path": "x"}, "file_store": {"type": "s3"}, "vector_store": {"dimension": 8}}`},
		{"unknown generator provider", `{"port": 1, "database": {"path": "x"}, "file_store": {"dir": "x"}, "vector_store": {"dimension": 8}, "ai": {"generator": [{"provider": "nope", "model": "m"}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFallbacks(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("REDIS_ADDR", "redis:6379")
	path := writeConfig(t, `{
		"port": 8000,
		"timezone": "Asia/Shanghai",
		"database": {"path": "/tmp/ragkb.db"},
		"file_store": {"dir": "/tmp/ragkb"},
		"vector_store": {"type": "qdrant", "dimension": 768},
		"task_queue": {"type": "redis"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
	require.Equal(t, 10, cfg.VectorStore.Qdrant.TimeoutSeconds)
	require.Equal(t, "redis:6379", cfg.TaskQueue.Redis.Addr)
	require.Equal(t, "ragkb:ingest", cfg.TaskQueue.Redis.Key)
	require.Equal(t, "Asia/Shanghai", cfg.Location().String())
}
