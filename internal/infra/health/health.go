package health

import (
	"net/http"
	"sync"
	"sync/atomic"
)

var (
	ready atomic.Bool

	mu     sync.RWMutex
	checks = map[string]func() error{}
)

// SetReady marks readiness state
func SetReady(v bool) { ready.Store(v) }

// AddCheck registers a readiness check; a non-nil error makes /readyz fail.
func AddCheck(name string, fn func() error) {
	mu.Lock()
	checks[name] = fn
	mu.Unlock()
}

// Ready reports whether the process is marked ready and every check passes.
// On failure it returns the reason.
func Ready() (bool, string) {
	if !ready.Load() {
		return false, "not ready"
	}
	mu.RLock()
	defer mu.RUnlock()
	for name, fn := range checks {
		if err := fn(); err != nil {
			return false, name + ": " + err.Error()
		}
	}
	return true, ""
}

// Healthz is a simple liveness probe
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reflects application readiness state
func Readyz(w http.ResponseWriter, r *http.Request) {
	if ok, reason := Ready(); !ok {
		http.Error(w, reason, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
