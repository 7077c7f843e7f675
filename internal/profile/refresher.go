package profile

import (
	"sync"
	"time"
)

// ToastDuration is how long the login message stays on screen.
const ToastDuration = 3 * time.Second

// AutoRefresher re-fetches the profile on an interval while the console is
// visible. Hiding stops the timer; becoming visible starts a fresh one and
// refreshes at once. At most one timer is live at a time.
type AutoRefresher struct {
	interval time.Duration
	refresh  func(Trigger)

	mu      sync.Mutex
	visible bool
	running bool
	gen     uint64
	stop    chan struct{}
}

func NewAutoRefresher(interval time.Duration, refresh func(Trigger)) *AutoRefresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AutoRefresher{
		interval: interval,
		refresh:  refresh,
		visible:  true,
	}
}

// Start arms the timer. It does not refresh immediately.
func (a *AutoRefresher) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.visible && !a.running {
		a.startLocked()
	}
}

// SetVisible records a visibility transition. Repeated calls with the same
// value are ignored.
func (a *AutoRefresher) SetVisible(visible bool) {
	a.mu.Lock()
	if visible == a.visible {
		a.mu.Unlock()
		return
	}
	a.visible = visible
	if !visible {
		a.stopLocked()
		a.mu.Unlock()
		return
	}
	a.stopLocked()
	a.startLocked()
	a.mu.Unlock()

	a.refresh(TriggerVisible)
}

// Stop disarms the timer for good.
func (a *AutoRefresher) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Running reports whether a timer is armed.
func (a *AutoRefresher) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *AutoRefresher) startLocked() {
	a.gen++
	gen := a.gen
	stop := make(chan struct{})
	a.stop = stop
	a.running = true

	ticker := time.NewTicker(a.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if a.current(gen) {
					a.refresh(TriggerInterval)
				}
			}
		}
	}()
}

func (a *AutoRefresher) stopLocked() {
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	a.gen++
	a.running = false
}

// current reports whether gen is still the live timer; a tick that races
// with a stop is dropped.
func (a *AutoRefresher) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running && a.gen == gen
}
