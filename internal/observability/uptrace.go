package observability

import (
	"context"
	"errors"
	"strings"

	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/otel/attribute"
)

// InitUptrace installs the global OpenTelemetry providers exporting to Uptrace.
// The returned func flushes pending spans and shuts the exporters down.
func InitUptrace(cfg config.Config, logger *logging.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	noop := func(context.Context) error { return nil }

	if !cfg.UptraceEnabled {
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return noop, nil
	}
	if strings.TrimSpace(cfg.UptraceDSN) == "" {
		logger.Info("uptrace disabled", "reason", "UPTRACE_DSN empty")
		return noop, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
		uptrace.WithResourceAttributes(resourceAttributes(cfg)...),
		uptrace.WithLoggingEnabled(false),
	)

	logger.Info("uptrace enabled",
		"service_name", cfg.ServiceName,
		"service_version", cfg.ServiceVersion,
		"environment", cfg.AppEnv,
	)

	return func(ctx context.Context) error {
		return errors.Join(uptrace.ForceFlush(ctx), uptrace.Shutdown(ctx))
	}, nil
}

func resourceAttributes(cfg config.Config) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("oddsline.storage_driver", cfg.StorageDriver),
		attribute.String("oddsline.fetch_mode", cfg.Scraper.FetchMode),
		attribute.Bool("oddsline.scraper_autostart", cfg.Scraper.Autostart),
	}
}
