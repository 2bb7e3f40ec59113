package refindex

// DeltaKind classifies a canvas file event.
type DeltaKind int

const (
	CanvasChanged DeltaKind = iota
	CanvasRemoved
)

// Delta is one incremental change to apply.
type Delta struct {
	Kind DeltaKind
	Path string
}

// Apply brings the index in line with a single canvas event: a change
// re-derives the entry and a removal deletes it. A rename is applied as a
// removal of the old path followed by a change of the new one.
func (ix *Index) Apply(d Delta) error {
	switch d.Kind {
	case CanvasChanged:
		return ix.IndexCanvas(d.Path)
	case CanvasRemoved:
		ix.Remove(d.Path)
		return nil
	}
	return nil
}
