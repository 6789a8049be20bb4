package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// Default interval between health checks.
	defaultHealthInterval = 60 * time.Second
	// Timeout for a single health-check dial.
	healthCheckTimeout = 5 * time.Second
	// Consecutive in-flight fetch failures before a relay is tripped
	// without waiting for the next health-check cycle.
	consecutiveFetchFailuresThreshold = 5
)

// relayStatus tracks the availability of a single relay.
type relayStatus struct {
	available    bool
	lastChecked  time.Time
	lastErr      string
	failureCount int
}

// HealthChecker periodically dials every configured relay and maintains an
// in-memory availability map. The Pool consults this map so that fan-out
// fetches skip relays that are known to be offline.
type HealthChecker struct {
	pool     *Pool
	interval time.Duration

	mu       sync.RWMutex
	statuses map[string]*relayStatus // keyed by relay URL

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthChecker creates a new health checker bound to the given pool.
// Call Start() to begin background checking.
func NewHealthChecker(pool *Pool, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthChecker{
		pool:     pool,
		interval: interval,
		statuses: make(map[string]*relayStatus),
		done:     make(chan struct{}),
	}
}

// Start begins the background health-check loop. It runs an immediate check
// on startup, then repeats at the configured interval. Safe to call once.
func (hc *HealthChecker) Start(ctx context.Context) {
	ctx, hc.cancel = context.WithCancel(ctx)

	go func() {
		defer close(hc.done)

		// Immediate first check so relays are classified before the first fetch.
		hc.checkAll(ctx)

		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hc.checkAll(ctx)
			}
		}
	}()
}

// Stop signals the health-check loop to stop and waits for it to finish.
func (hc *HealthChecker) Stop() {
	if hc.cancel != nil {
		hc.cancel()
	}
	<-hc.done
}

// IsAvailable reports whether the relay at url is considered reachable.
// Relays that have never been checked are assumed available so that the
// first fetches aren't blocked.
func (hc *HealthChecker) IsAvailable(url string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	s, ok := hc.statuses[url]
	if !ok {
		return true // unknown = assume available until first check
	}
	return s.available
}

// RecordRequestFailure records an in-flight fetch failure for a relay.
// This supplements the periodic check: a relay that starts failing live
// fetches trips faster than waiting for the next health-check cycle. The
// relay stays unavailable until the next successful check restores it.
func (hc *HealthChecker) RecordRequestFailure(url string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	s, ok := hc.statuses[url]
	if !ok {
		s = &relayStatus{available: true}
		hc.statuses[url] = s
	}

	s.failureCount++
	if s.failureCount >= consecutiveFetchFailuresThreshold && s.available {
		slog.Warn("relay marked unavailable after repeated fetch failures",
			"relay", url, "failures", s.failureCount)
		s.available = false
	}
}

// RecordRequestSuccess resets the per-fetch failure counter for a relay.
func (hc *HealthChecker) RecordRequestSuccess(url string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	s, ok := hc.statuses[url]
	if !ok {
		return
	}
	// Only reset the fetch-failure count; the health checker owns the
	// unavailable → available transition.
	if s.available {
		s.failureCount = 0
	}
}

// Status is a snapshot of a relay's health for the API.
type Status struct {
	URL          string    `json:"url"`
	Available    bool      `json:"available"`
	LastChecked  time.Time `json:"last_checked"`
	LastError    string    `json:"last_error,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// Statuses returns a snapshot of all tracked relay health statuses.
func (hc *HealthChecker) Statuses() []Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := make([]Status, 0, len(hc.statuses))
	for url, s := range hc.statuses {
		result = append(result, Status{
			URL:          url,
			Available:    s.available,
			LastChecked:  s.lastChecked,
			LastError:    s.lastErr,
			FailureCount: s.failureCount,
		})
	}
	return result
}

// checkAll dials every configured relay concurrently.
func (hc *HealthChecker) checkAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, url := range hc.pool.URLs() {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			hc.checkOne(ctx, url)
		}(url)
	}
	wg.Wait()
}

// checkOne opens and immediately closes a websocket to the relay. A relay
// that completes the handshake is considered reachable.
func (hc *HealthChecker) checkOne(ctx context.Context, url string) {
	dialCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	conn, _, err := hc.pool.dialer.DialContext(dialCtx, url, nil)
	if err == nil {
		_ = conn.Close()
	}
	hc.recordResult(url, err)
}

// recordResult updates the in-memory status for a relay.
// A relay is marked unavailable after 2 consecutive failures, and marked
// available again on the first success. This avoids flapping on transient
// single-dial failures.
func (hc *HealthChecker) recordResult(url string, err error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	s, ok := hc.statuses[url]
	if !ok {
		s = &relayStatus{available: true}
		hc.statuses[url] = s
	}

	s.lastChecked = time.Now()

	if err == nil {
		if !s.available {
			slog.Info("relay came back online", "relay", url)
		}
		s.available = true
		s.failureCount = 0
		s.lastErr = ""
		return
	}

	s.failureCount++
	s.lastErr = err.Error()

	if s.failureCount >= 2 && s.available {
		slog.Warn("relay marked unavailable",
			"relay", url, "failures", s.failureCount, "error", err)
		s.available = false
	}
}
