// Package probe checks whether a remote host is reachable within a bounded time.
package probe

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	http_utils "github.com/benmeehan/heartbeat-agent/pkg/httpUtils"
)

// Prober reports whether a target is reachable. Implementations never block
// longer than their configured timeout multiplied by their retry count.
type Prober interface {
	Reachable(ctx context.Context, target string) bool
}

// NetProber probes http(s) URLs with a GET and anything else with a TCP dial.
type NetProber struct {
	Timeout time.Duration
	Retries int

	client *http.Client
	dialer *net.Dialer
}

// NewNetProber creates a NetProber that tries each target up to retries
// times, bounding every attempt by timeout.
func NewNetProber(timeout time.Duration, retries int) *NetProber {
	if retries < 1 {
		retries = 1
	}
	return &NetProber{
		Timeout: timeout,
		Retries: retries,
		client:  &http.Client{Timeout: timeout},
		dialer:  &net.Dialer{Timeout: timeout},
	}
}

// Reachable returns true as soon as one attempt succeeds.
func (p *NetProber) Reachable(ctx context.Context, target string) bool {
	for attempt := 0; attempt < p.Retries; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if p.attempt(ctx, target) {
			return true
		}
	}
	return false
}

func (p *NetProber) attempt(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		status, err := http_utils.Fetch(ctx, p.client, target)
		return err == nil && status < http.StatusInternalServerError
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", hostPort(target))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func hostPort(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(strings.Trim(target, "[]"), "80")
}
