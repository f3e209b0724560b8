package handlers

import (
	"net/http"
	"os"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/shirou/gopsutil/host"
)

type versionResponse struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform,omitempty"`
	Uptime   uint64 `json:"uptime,omitempty"`
}

// Version reports the build version, normalized when it is valid semver.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	resp := versionResponse{Version: h.version, Go: runtime.Version()}
	if v, err := semver.NewVersion(h.version); err == nil {
		resp.Version = v.String()
	}

	if info, err := host.InfoWithContext(r.Context()); err == nil {
		resp.Hostname = info.Hostname
		resp.Platform = info.Platform + " " + info.PlatformVersion
		resp.Uptime = info.Uptime
	} else if hostname, err := os.Hostname(); err == nil {
		resp.Hostname = hostname
	}

	writeJSON(w, http.StatusOK, resp)
}
