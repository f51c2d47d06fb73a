package client

import "sync"

// StickThresholdPx is how close to the bottom the viewport must be for
// new messages to keep it pinned there
const StickThresholdPx = 24.0

// OlderLoadedScrollTop is the scroll offset applied after prepending
// older history. Pinning to 1 instead of 0 keeps the viewport from
// immediately re-triggering the top-of-list load.
const OlderLoadedScrollTop = 1.0

// ScrollCoordinator decides where the viewport should be after the
// conversation changes. The UI reports scroll metrics; the coordinator
// answers with a target offset when one applies.
type ScrollCoordinator struct {
	mu    sync.Mutex
	stick bool
}

// NewScrollCoordinator starts stuck to the bottom, where a freshly
// opened conversation lands
func NewScrollCoordinator() *ScrollCoordinator {
	return &ScrollCoordinator{stick: true}
}

// Observe records the current viewport position. scrollTop is the
// offset, scrollHeight the full content height, clientHeight the
// viewport height.
func (sc *ScrollCoordinator) Observe(scrollTop, scrollHeight, clientHeight float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	distance := scrollHeight - clientHeight - scrollTop
	sc.stick = distance < StickThresholdPx
}

// Sticking reports whether the viewport follows new messages
func (sc *ScrollCoordinator) Sticking() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stick
}

// TargetAfterAppend returns the scroll offset to apply after a message
// is appended, and whether to apply it. The viewport only moves when it
// was already at the bottom.
func (sc *ScrollCoordinator) TargetAfterAppend(scrollHeight, clientHeight float64) (float64, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.stick {
		return 0, false
	}
	target := scrollHeight - clientHeight
	if target < 0 {
		target = 0
	}
	return target, true
}

// TargetAfterOlderLoaded returns the scroll offset to apply after older
// history is prepended
func (sc *ScrollCoordinator) TargetAfterOlderLoaded() float64 {
	return OlderLoadedScrollTop
}
