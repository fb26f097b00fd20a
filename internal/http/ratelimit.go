package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// writesPerMinute caps mutating requests per client IP. Reads are
// never limited; the partials refresh on every htmx event.
const writesPerMinute = 60

// writeLimiter counts POSTs per client IP in fixed one-minute windows.
type writeLimiter struct {
	mu      sync.Mutex
	windows map[string]*writeWindow

	done      chan struct{}
	closeOnce sync.Once
}

type writeWindow struct {
	start time.Time
	count int
}

func newWriteLimiter() *writeLimiter {
	wl := &writeLimiter{
		windows: make(map[string]*writeWindow),
		done:    make(chan struct{}),
	}
	go wl.sweepLoop()
	return wl
}

// permit records a write from clientIP and reports whether it is
// within the window budget.
func (wl *writeLimiter) permit(clientIP string, metrics *securityMetrics) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := time.Now()
	win := wl.windows[clientIP]
	if win == nil || now.Sub(win.start) >= time.Minute {
		wl.windows[clientIP] = &writeWindow{start: now, count: 1}
		return true
	}

	win.count++
	if win.count > writesPerMinute {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

// sweepLoop drops windows for clients that have gone quiet so the map
// does not grow with every IP ever seen.
func (wl *writeLimiter) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wl.sweep(time.Now().Add(-10 * time.Minute))
		case <-wl.done:
			return
		}
	}
}

func (wl *writeLimiter) sweep(cutoff time.Time) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for ip, win := range wl.windows {
		if win.start.Before(cutoff) {
			delete(wl.windows, ip)
		}
	}
}

// close stops the sweep goroutine. Safe to call more than once.
func (wl *writeLimiter) close() {
	wl.closeOnce.Do(func() { close(wl.done) })
}
