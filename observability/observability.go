package observability

import (
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"

	"github.com/rainbow-me/platform-lifecycle/common/env"
	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

type config struct {
	MetricsEnabled   bool
	AnalyticsEnabled bool
	DebugStack       bool
}

type Option func(o *config)

// WithMetrics enables/disables collection of Go runtime metrics. Default enabled.
func WithMetrics(enabled bool) Option {
	return func(c *config) {
		c.MetricsEnabled = enabled
	}
}

// WithAnalytics enables/disables trace analytics. Default enabled.
func WithAnalytics(enabled bool) Option {
	return func(c *config) {
		c.AnalyticsEnabled = enabled
	}
}

// WithDebugStack enables/disables capture of stack traces when an error is set
// on a span. Default disabled.
func WithDebugStack(enabled bool) Option {
	return func(c *config) {
		c.DebugStack = enabled
	}
}

// InitObservability starts the tracer with sensible defaults and registers a
// shutdown notification so the tracer flushes and stops as soon as the drain
// begins, without ever blocking it.
func InitObservability(reg lifecycle.Registrar, serviceName string, log *logger.Logger, opts ...Option) {
	log.Info("Starting tracer")
	cfg := &config{
		MetricsEnabled:   true,
		AnalyticsEnabled: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	tracerOpts := []tracer.StartOption{
		tracer.WithEnv(env.GetApplicationEnvSafe().String()),
		tracer.WithService(serviceName),
		tracer.WithLogger((*logger.Adapter)(log)),
		tracer.WithDebugStack(cfg.DebugStack),
		tracer.WithAnalytics(cfg.AnalyticsEnabled),
	}
	if cfg.MetricsEnabled {
		tracerOpts = append(tracerOpts, tracer.WithRuntimeMetrics())
	}

	if err := tracer.Start(tracerOpts...); err != nil {
		log.Error("Failed to start tracer", logger.Error(err))
		return
	}

	reg.OnShutdown(func() {
		log.Info("Stopping tracer")
		tracer.Stop()
	})
}
