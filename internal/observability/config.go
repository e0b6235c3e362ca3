package observability

import (
	"strings"

	"github.com/smallbiznis/posledger/internal/config"
	"github.com/smallbiznis/posledger/internal/observability/metrics"
)

// Config holds observability settings derived from the application config.
type Config struct {
	ServiceName    string
	Environment    string
	MetricsEnabled bool
	MetricsAddr    string
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "posledger"
	}
	return Config{
		ServiceName:    serviceName,
		Environment:    strings.TrimSpace(cfg.Environment),
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsAddr:    strings.TrimSpace(cfg.MetricsAddr),
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}
