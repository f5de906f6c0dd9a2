package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		AppEnv:         config.EnvDev,
		HTTPAddr:       ":0",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		AdminToken:     "s3cret",
		StorageDriver:  config.StorageMemory,
		CacheTTL:       time.Second,
		MetricsEnabled: true,
		Scraper: config.ScraperConfig{
			FetchMode:    config.FetchModeHTTP,
			MainURL:      "https://book.example.com/prematch",
			Timezone:     time.UTC,
			PageTimeout:  time.Second,
			MainInterval: time.Hour,
			LiveInterval: time.Hour,
			CycleTimeout: time.Second,
			LogLines:     20,
			LogDir:       t.TempDir(),
			LogMaxBytes:  4096,
		},
		Settlement: config.SettlementConfig{SweepInterval: time.Hour, Autostart: true},
		TaskQueue:  config.TaskQueueConfig{Workers: 1, TaskTimeout: time.Second},
	}
}

func TestApp_ServesControlSurface(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), logging.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(a.Server().Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/admin/scrapers", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
}

func TestApp_StartHonorsAutostart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Scraper.Autostart = false
	a, err := New(ctx, cfg, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.Start(ctx))
	status := a.registry.Combined()
	running := map[string]bool{}
	for _, s := range status.Supervisors {
		running[s.Name] = s.Running
	}
	assert.False(t, running[usecase.SupervisorMain])
	assert.False(t, running[usecase.SupervisorLive])
	assert.True(t, running[usecase.SupervisorSettlement])

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
}

func TestNew_RejectsEmptyAddr(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = ""
	_, err := New(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
}
