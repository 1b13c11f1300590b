package common

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("SSI_CACHE_DIR", "/srv/ssi")
	t.Setenv("CLICKHOUSE_PORT", "19000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	assert.Equal(t, "/srv/ssi", cfg.Cache.Dir)
	assert.Equal(t, 19000, cfg.ClickHouse.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "localhost:19000", cfg.ClickHouse.Addr())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_CH_PASSWORD", "s3cret")
	path := filepath.Join(t.TempDir(), "ssi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: warn
cache:
  dir: /data/ssi
fetch:
  timeout: 2m
clickhouse:
  host: ch.local
  password: ${TEST_CH_PASSWORD}
metrics:
  textfile: /var/lib/node_exporter/ssi.prom
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "/data/ssi", cfg.Cache.Dir)
	assert.Equal(t, 2*time.Minute, cfg.Fetch.Timeout)
	assert.Equal(t, "ch.local", cfg.ClickHouse.Host)
	assert.Equal(t, "s3cret", cfg.ClickHouse.Password)
	assert.Equal(t, 100000, cfg.ClickHouse.BatchSize, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/node_exporter/ssi.prom", cfg.Metrics.Textfile)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Cache.Dir)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"port", "clickhouse:\n  port: 70000\n", "Port"},
		{"timeout", "fetch:\n  timeout: 10ms\n", "Timeout"},
		{"ftp", "fetch:\n  ftp_password: x\n", "ftp_user"},
		{"syntax", "cache: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ssi.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStats(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddDataset(100)
			s.AddBytes(1024)
		}()
	}
	wg.Wait()
	s.AddFailure()

	assert.Equal(t, uint64(8), s.GetDatasets())
	assert.Equal(t, uint64(800), s.GetPoints())
	assert.Equal(t, uint64(8192), s.GetBytes())
	assert.Equal(t, uint64(1), s.GetFailures())
	assert.Equal(t, "datasets=8 failed=1 points=800 downloaded=8192 bytes", s.Summary())

	s.Reset()
	assert.Zero(t, s.GetPoints())
}

func TestStats_Reporter(t *testing.T) {
	s := NewStats()
	var buf safeBuffer
	s.SetOutput(&buf)
	s.interval = 10 * time.Millisecond
	s.AddDataset(5)

	s.StartReporter()
	s.StartReporter()
	assert.Eventually(t, func() bool { return strings.Contains(buf.String(), "[Progress]") }, time.Second, 5*time.Millisecond)
	s.StopReporter()
	s.StopReporter()
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
