package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrollStartsStuck(t *testing.T) {
	sc := NewScrollCoordinator()
	assert.True(t, sc.Sticking())
}

func TestScrollStickThreshold(t *testing.T) {
	sc := NewScrollCoordinator()

	// 1000px content, 400px viewport: bottom is scrollTop 600
	sc.Observe(600, 1000, 400)
	assert.True(t, sc.Sticking())

	// Just inside the threshold still sticks
	sc.Observe(600-StickThresholdPx+1, 1000, 400)
	assert.True(t, sc.Sticking())

	// Exactly at the threshold releases
	sc.Observe(600-StickThresholdPx, 1000, 400)
	assert.False(t, sc.Sticking())
}

func TestScrollTargetAfterAppend(t *testing.T) {
	sc := NewScrollCoordinator()

	sc.Observe(600, 1000, 400)
	target, apply := sc.TargetAfterAppend(1100, 400)
	assert.True(t, apply)
	assert.Equal(t, 700.0, target)

	// Scrolled up reading history, appends must not yank the viewport
	sc.Observe(100, 1100, 400)
	_, apply = sc.TargetAfterAppend(1200, 400)
	assert.False(t, apply)
}

func TestScrollTargetAfterOlderLoaded(t *testing.T) {
	sc := NewScrollCoordinator()
	assert.Equal(t, OlderLoadedScrollTop, sc.TargetAfterOlderLoaded())
}

func TestScrollTargetClampedToZero(t *testing.T) {
	sc := NewScrollCoordinator()
	sc.Observe(0, 300, 400)

	target, apply := sc.TargetAfterAppend(350, 400)
	assert.True(t, apply)
	assert.Zero(t, target)
}
