package observability

import (
	"context"
	"testing"

	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

func TestInitUptrace_Disabled(t *testing.T) {
	cfg := config.Config{
		UptraceEnabled: false,
		ServiceName:    "oddsline",
		ServiceVersion: "dev",
		AppEnv:         config.EnvDev,
	}

	shutdown, err := InitUptrace(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("init uptrace: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown uptrace: %v", err)
	}
}

func TestInitPyroscope_Disabled(t *testing.T) {
	stop, err := InitPyroscope(config.Config{PyroscopeEnabled: false}, logging.NewNop())
	if err != nil {
		t.Fatalf("init pyroscope: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("stop pyroscope: %v", err)
	}
}

func TestStartPprofServer_Disabled(t *testing.T) {
	srv, err := StartPprofServer(config.Config{PprofEnabled: false}, logging.NewNop())
	if err != nil {
		t.Fatalf("start pprof: %v", err)
	}
	if srv != nil {
		t.Fatalf("expected no server when pprof is disabled")
	}
	if err := StopPprofServer(nil, logging.NewNop(), 0); err != nil {
		t.Fatalf("stop nil pprof server: %v", err)
	}
}

func TestResourceAttributes(t *testing.T) {
	cfg := config.Config{StorageDriver: config.StoragePostgres}
	cfg.Scraper.FetchMode = config.FetchModeBrowser

	got := map[string]string{}
	for _, kv := range resourceAttributes(cfg) {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got["oddsline.storage_driver"] != "postgres" || got["oddsline.fetch_mode"] != "browser" {
		t.Fatalf("unexpected attributes: %v", got)
	}
	if got["oddsline.scraper_autostart"] != "false" {
		t.Fatalf("unexpected autostart attribute: %v", got)
	}
}
