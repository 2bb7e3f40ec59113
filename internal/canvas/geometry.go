package canvas

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of r.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// ContainsPoint reports whether (px, py) lies within r, edges included.
func (r Rect) ContainsPoint(px, py float64) bool {
	return px >= r.X && px <= r.X+r.Width && py >= r.Y && py <= r.Y+r.Height
}

// Contains reports whether inner's center lies within r.
func (r Rect) Contains(inner Rect) bool {
	return r.ContainsPoint(inner.Center())
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Rect returns the node geometry.
func (n *Node) Rect() Rect {
	return Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// SetRect overwrites the node geometry.
func (n *Node) SetRect(r Rect) {
	n.X, n.Y, n.Width, n.Height = r.X, r.Y, r.Width, r.Height
}

// Contains reports whether other's center lies inside n.
func (n *Node) Contains(other *Node) bool {
	return n.Rect().Contains(other.Rect())
}
