package humanoid

import (
	"math"
	"sync"
)

// Vector2D is a point in page (CSS pixel) coordinates.
type Vector2D struct {
	X float64
	Y float64
}

// Sub returns v - other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mag returns the Euclidean length of v.
func (v Vector2D) Mag() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the Euclidean distance between v and other.
func (v Vector2D) Dist(other Vector2D) float64 {
	return v.Sub(other).Mag()
}

// PositionCache holds the last rendered cursor position for one automation session. It starts
// at the origin and goes back there on Reset, which the session calls on every main-frame
// navigation.
type PositionCache struct {
	mu  sync.Mutex
	pos Vector2D
}

// NewPositionCache returns a cache at the origin.
func NewPositionCache() *PositionCache {
	return &PositionCache{}
}

// Position returns the last known cursor position.
func (c *PositionCache) Position() Vector2D {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// X returns the cached horizontal coordinate.
func (c *PositionCache) X() float64 { return c.Position().X }

// Y returns the cached vertical coordinate.
func (c *PositionCache) Y() float64 { return c.Position().Y }

// Set records a completed move.
func (c *PositionCache) Set(p Vector2D) {
	c.mu.Lock()
	c.pos = p
	c.mu.Unlock()
}

// Reset moves the cached cursor back to the origin.
func (c *PositionCache) Reset() {
	c.Set(Vector2D{})
}
