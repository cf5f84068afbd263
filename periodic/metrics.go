package periodic

import (
	"runtime"
	"time"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// PoolStats mirrors the executor's activity counters without importing it.
type PoolStats struct {
	InFlight  int
	Completed uint64
	Rejected  uint64
}

// StatsFunc supplies a point-in-time pool snapshot for each sample.
type StatsFunc func() PoolStats

// NewMetricsReporter runs the periodic metrics updater: every interval it
// samples pool and runtime stats and emits them as a structured log entry.
func NewMetricsReporter(reg lifecycle.Registrar, stats StatsFunc, interval time.Duration, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Instance()
	}
	metricsLog := log.Named("metrics")

	sample := func() {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		fields := []logger.Field{
			logger.Int("goroutines", runtime.NumGoroutine()),
			logger.Uint64("heap_alloc_bytes", mem.HeapAlloc),
			logger.Uint64("gc_cycles", uint64(mem.NumGC)),
		}
		if stats != nil {
			s := stats()
			fields = append(fields,
				logger.Int("tasks_in_flight", s.InFlight),
				logger.Uint64("tasks_completed", s.Completed),
				logger.Uint64("tasks_rejected", s.Rejected),
			)
		}
		metricsLog.Info("Runtime metrics", fields...)
	}

	return NewRunner(reg, "metrics-reporter", interval, sample, log)
}
