package engine

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fx/common"
)

const (
	// MinTimeScale and MaxTimeScale bound the effect clock's playback speed.
	MinTimeScale = 0.0625
	MaxTimeScale = 16.0
)

// Clock is the effect time source passed to every layer's Render.
// Effect time advances with wall time multiplied by the time scale and stands still while paused.
// All methods are safe for concurrent use.
type Clock struct {
	mu sync.Mutex

	// elapsed is the effect time accumulated up to mark.
	elapsed time.Duration
	mark    time.Time
	paused  bool
	scale   float64

	now func() time.Time
}

// NewClock creates a running clock at time zero with a time scale of 1.
//
// Returns:
//   - *Clock: the new clock
func NewClock() *Clock {
	return newClockAt(time.Now)
}

func newClockAt(now func() time.Time) *Clock {
	return &Clock{
		mark:  now(),
		scale: 1,
		now:   now,
	}
}

// advance folds the wall time since mark into elapsed. Callers hold mu.
func (c *Clock) advance() {
	t := c.now()
	if !c.paused {
		c.elapsed += time.Duration(float64(t.Sub(c.mark)) * c.scale)
	}
	c.mark = t
}

// Now returns the current effect time.
//
// Returns:
//   - time.Duration: the effect time since the last reset
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.elapsed
}

// Seconds returns the current effect time in seconds, the value written into the root constants.
//
// Returns:
//   - float32: the effect time in seconds
func (c *Clock) Seconds() float32 {
	return float32(c.Now().Seconds())
}

// Pause stops the effect time. Pausing a paused clock is a no-op.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.paused = true
}

// Resume restarts a paused clock from the time it was paused at.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.paused = false
}

// TogglePause pauses a running clock or resumes a paused one.
//
// Returns:
//   - bool: true if the clock is paused after the call
func (c *Clock) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.paused = !c.paused
	return c.paused
}

// Paused reports whether the clock is paused.
//
// Returns:
//   - bool: true while paused
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetScale sets the playback speed, clamped to [MinTimeScale, MaxTimeScale].
// Effect time already elapsed is not rescaled.
//
// Parameters:
//   - scale: the new time scale
//
// Returns:
//   - float64: the time scale actually applied
func (c *Clock) SetScale(scale float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.scale = common.Clamp(scale, MinTimeScale, MaxTimeScale)
	return c.scale
}

// Scale returns the current playback speed.
//
// Returns:
//   - float64: the time scale
func (c *Clock) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Reset sets the effect time back to zero. The paused state and time scale are kept.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = 0
	c.mark = c.now()
}
