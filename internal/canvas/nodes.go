package canvas

import (
	"strings"

	"github.com/google/uuid"
)

const idLen = 16

// NewID returns a random 16 character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLen]
}

// NewNodeID returns an identifier not used by any node in d.
func (d *Document) NewNodeID() string {
	for {
		id := NewID()
		if d.NodeByID(id) == nil {
			return id
		}
	}
}

// NodeByID returns the node with the given id, or nil.
func (d *Document) NodeByID(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// IndexOf returns the position of n in the node sequence, or -1.
func (d *Document) IndexOf(n *Node) int {
	for i, have := range d.Nodes {
		if have == n {
			return i
		}
	}
	return -1
}

// Append adds nodes at the end of the sequence, on top of everything else.
func (d *Document) Append(nodes ...*Node) {
	d.Nodes = append(d.Nodes, nodes...)
}

// Prepend adds n at the front of the sequence, below everything else.
func (d *Document) Prepend(n *Node) {
	d.Nodes = append([]*Node{n}, d.Nodes...)
}

// OfType returns the nodes of type t in document order.
func (d *Document) OfType(t NodeType) []*Node {
	var out []*Node
	for _, n := range d.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Bounds returns the rectangle enclosing every node. ok is false for an
// empty document.
func (d *Document) Bounds() (r Rect, ok bool) {
	if len(d.Nodes) == 0 {
		return Rect{}, false
	}
	minX, minY := d.Nodes[0].X, d.Nodes[0].Y
	maxX, maxY := d.Nodes[0].Rect().Right(), d.Nodes[0].Y+d.Nodes[0].Height
	for _, n := range d.Nodes[1:] {
		minX = min(minX, n.X)
		minY = min(minY, n.Y)
		maxX = max(maxX, n.X+n.Width)
		maxY = max(maxY, n.Y+n.Height)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
