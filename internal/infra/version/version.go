package version

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Set at build time with -ldflags "-X betsync/internal/infra/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Handler writes version info as JSON
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info{Service: "betsync", Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()})
}
