// Package health exposes the readiness and liveness surfaces that the
// orchestrator polls, wired directly to the lifecycle coordinator's state.
package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/platform-lifecycle/lifecycle"
)

const (
	LivenessPath  = "/livez"
	ReadinessPath = "/readyz"
)

// Probes answers liveness and readiness checks. Liveness always reports
// healthy so the shutdown sequence is never interrupted by the orchestrator
// killing a draining instance; readiness flips to not-ready the instant
// shutdown begins so new traffic stops arriving while the drain proceeds.
type Probes struct {
	reg lifecycle.Registrar
}

// NewProbes binds the probe surface to the coordinator's state.
func NewProbes(reg lifecycle.Registrar) *Probes {
	return &Probes{reg: reg}
}

// Register mounts both probes on a gin router.
func (p *Probes) Register(r gin.IRoutes) {
	r.GET(LivenessPath, gin.WrapF(p.LivenessHandler()))
	r.GET(ReadinessPath, gin.WrapF(p.ReadinessHandler()))
}

// Mount registers both probes on a plain ServeMux for the production server.
func (p *Probes) Mount(mux *http.ServeMux) {
	mux.HandleFunc(LivenessPath, p.LivenessHandler())
	mux.HandleFunc(ReadinessPath, p.ReadinessHandler())
}

// LivenessHandler always returns success.
func (p *Probes) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ReadinessHandler returns success while running and a short-body failure as
// soon as shutdown begins. The state read is lock-free; this sits on the hot
// path of every probe.
func (p *Probes) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if p.reg.IsShuttingDown() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("shutting down"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
