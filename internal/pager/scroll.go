package pager

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultThreshold is the distance from an edge that counts as "near".
	DefaultThreshold = 40
	// DefaultDebounce suppresses repeated triggers from one continuous gesture.
	DefaultDebounce = 160 * time.Millisecond
)

// Geometry is the scroll state of the table container.
type Geometry struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// NearTop reports whether the viewport is within threshold of the top.
func (g Geometry) NearTop(threshold int) bool {
	return g.ScrollTop < threshold
}

// NearBottom reports whether the viewport is within threshold of the bottom.
func (g Geometry) NearBottom(threshold int) bool {
	return g.ScrollHeight-g.ClientHeight-g.ScrollTop < threshold
}

// ApplyRestore returns the scroll offset after a page render. Top lands on 1
// rather than 0 so the next gesture does not immediately read as near-top.
func ApplyRestore(r Restore, g Geometry) int {
	switch r {
	case RestoreTop:
		return 1
	case RestoreBottom:
		off := g.ScrollHeight - g.ClientHeight - 1
		if off < 0 {
			return 0
		}
		return off
	default:
		return g.ScrollTop
	}
}

// Gesture is one wheel or key event over the table. Delta > 0 scrolls down.
type Gesture struct {
	Delta    int
	Geometry Geometry
}

// Decision is a page request produced by a boundary gesture.
type Decision struct {
	Page    int
	Restore Restore
}

// BoundaryTrigger turns edge gestures into adjacent-page requests, at most
// one per debounce window.
type BoundaryTrigger struct {
	threshold int
	now       func() time.Time
	limiter   *rate.Limiter
}

func NewBoundaryTrigger(threshold int, window time.Duration) *BoundaryTrigger {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &BoundaryTrigger{
		threshold: threshold,
		now:       time.Now,
		limiter:   rate.NewLimiter(rate.Every(window), 1),
	}
}

// WithClock replaces the time source.
func (b *BoundaryTrigger) WithClock(now func() time.Time) *BoundaryTrigger {
	b.now = now
	return b
}

// Decide maps a gesture to a page request. Gestures during a load are
// ignored without consuming the window; any other gesture opens a window,
// whether or not it lands near an edge.
func (b *BoundaryTrigger) Decide(g Gesture, st PageState) (Decision, bool) {
	if st.Loading {
		return Decision{}, false
	}
	if !b.limiter.AllowN(b.now(), 1) {
		return Decision{}, false
	}

	switch {
	case g.Delta > 0 && g.Geometry.NearBottom(b.threshold) && st.HasNext():
		return Decision{Page: st.CurrentPage + 1, Restore: RestoreTop}, true
	case g.Delta < 0 && g.Geometry.NearTop(b.threshold) && st.HasPrev():
		return Decision{Page: st.CurrentPage - 1, Restore: RestoreBottom}, true
	}
	return Decision{}, false
}
