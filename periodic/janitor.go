package periodic

import (
	"time"

	"github.com/rainbow-me/platform-lifecycle/common/logger"
	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

// SweepFunc removes whatever has expired and reports how many entries went.
type SweepFunc func() (removed int, err error)

// NewJanitor runs the periodic cleanup loop. Sweep failures are logged and
// the loop keeps going; like every periodic collaborator it stops on the
// shutdown notification and never blocks the drain.
func NewJanitor(reg lifecycle.Registrar, sweep SweepFunc, interval time.Duration, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Instance()
	}
	janitorLog := log.Named("janitor")

	run := func() {
		removed, err := sweep()
		if err != nil {
			janitorLog.Warn("Cleanup sweep failed", logger.Error(err))
			return
		}
		if removed > 0 {
			janitorLog.Info("Cleanup sweep done", logger.Int("removed", removed))
		}
	}

	return NewRunner(reg, "cleanup", interval, run, log)
}
