// Package cards creates, syncs, and aligns the reference cards that stand
// for notes inside canvases.
package cards

import (
	"fmt"
	"math"
	"strings"

	"github.com/starford/cardsync/internal/canvas"
	"github.com/starford/cardsync/internal/measure"
	"github.com/starford/cardsync/internal/models"
)

// Options tunes the engine.
type Options struct {
	// GroupSynthesis frames every card in a group labelled with the note name.
	GroupSynthesis bool
	// SyncSize lets Sync resize a card to its measured size.
	SyncSize bool
	// Gap is the horizontal distance between a new card and the rightmost node.
	Gap float64
	// DefaultX and DefaultY place the first card on an empty canvas.
	DefaultX, DefaultY float64
	// Tolerance is how far a stored size may drift from the measured one
	// before Sync resizes it.
	Tolerance float64
}

// DefaultOptions returns the stock engine settings.
func DefaultOptions() Options {
	return Options{GroupSynthesis: true, SyncSize: true, Gap: 100, Tolerance: 2}
}

// Outcome describes what an operation did to a card.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeSynced    Outcome = "synced"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeMissing   Outcome = "missing"
)

// Result reports the card an operation settled on.
type Result struct {
	NodeID  string  `json:"node_id,omitempty"`
	GroupID string  `json:"group_id,omitempty"`
	Outcome Outcome `json:"outcome"`
}

// Engine applies the reconciliation rules to in-memory documents. It never
// touches storage; callers decide whether to write based on the dirty flag.
type Engine struct {
	measurer measure.Measurer
	opts     Options
}

// NewEngine creates an engine.
func NewEngine(m measure.Measurer, opts Options) *Engine {
	return &Engine{measurer: m, opts: opts}
}

// Options returns the engine settings.
func (e *Engine) Options() Options { return e.opts }

// Lookup finds the card for notePath. text is the best text card: one whose
// content starts with the generated heading wins over one that merely links
// the note. A link only counts when the target ends right after the link
// prefix, so [[notebook]] is not a card for note.md. file is the first file
// node pointing at notePath. Either may be nil.
func Lookup(doc *canvas.Document, notePath string) (text, file *canvas.Node) {
	prefix := LinkPrefix(notePath)
	heading := "# " + prefix
	textHeading := false
	for _, n := range doc.Nodes {
		switch n.Type {
		case canvas.TypeText:
			if textHeading || !linksTo(n.Text, prefix) {
				continue
			}
			if strings.HasPrefix(n.Text, heading) && targetEnds(n.Text[len(heading):]) {
				text, textHeading = n, true
			} else if text == nil {
				text = n
			}
		case canvas.TypeFile:
			if file == nil && n.File == notePath {
				file = n
			}
		}
	}
	return text, file
}

// linksTo reports whether s contains prefix followed by the end of a link
// target.
func linksTo(s, prefix string) bool {
	for {
		i := strings.Index(s, prefix)
		if i < 0 {
			return false
		}
		s = s[i+len(prefix):]
		if targetEnds(s) {
			return true
		}
	}
}

// targetEnds reports whether rest starts where a wiki-link target ends: the
// closing brackets, an alias, a heading anchor or the note extension.
func targetEnds(rest string) bool {
	if rest == "" {
		return false
	}
	switch rest[0] {
	case ']', '|', '#':
		return true
	}
	return strings.HasPrefix(rest, models.NoteExt)
}

// HasCard reports whether doc already holds a card for notePath.
func HasCard(doc *canvas.Document, notePath string) bool {
	text, file := Lookup(doc, notePath)
	return text != nil || file != nil
}

// Upsert creates the card for note when none exists and syncs it otherwise.
func (e *Engine) Upsert(doc *canvas.Document, note models.NoteMeta) (Result, bool, error) {
	if !HasCard(doc, note.Path) {
		res, err := e.Add(doc, note)
		return res, err == nil, err
	}
	return e.Sync(doc, note)
}

// Add appends a new card for note, preceded by its group when group
// synthesis is on. Callers check HasCard first.
func (e *Engine) Add(doc *canvas.Document, note models.NoteMeta) (Result, error) {
	text := CardText(note)
	size, err := e.measurer.Measure(text)
	if err != nil {
		return Result{}, fmt.Errorf("cards: measure: %w", err)
	}

	x, y := e.placement(doc)
	rect := canvas.Rect{X: x, Y: y, Width: size.Width, Height: size.Height}

	card := &canvas.Node{ID: doc.NewNodeID(), Type: canvas.TypeText, Text: text}
	card.SetRect(rect)

	res := Result{NodeID: card.ID, Outcome: OutcomeCreated}
	if e.opts.GroupSynthesis {
		group := newGroup(doc, models.Basename(note.Path), rect, card.ID)
		doc.Append(group)
		res.GroupID = group.ID
	}
	doc.Append(card)
	return res, nil
}

// placement puts a new card to the right of everything, at the mean y.
func (e *Engine) placement(doc *canvas.Document) (float64, float64) {
	bounds, ok := doc.Bounds()
	if !ok {
		return e.opts.DefaultX, e.opts.DefaultY
	}
	var sumY float64
	for _, n := range doc.Nodes {
		sumY += n.Y
	}
	return bounds.Right() + e.opts.Gap, sumY / float64(len(doc.Nodes))
}

// Sync brings an existing card in line with note. Text cards are retexted,
// and resized when SyncSize is on; a missing group is repaired. A card that
// exists only as a file node is reported without edits. The bool is true
// when doc changed.
func (e *Engine) Sync(doc *canvas.Document, note models.NoteMeta) (Result, bool, error) {
	card, file := Lookup(doc, note.Path)
	if card == nil {
		if file == nil {
			return Result{Outcome: OutcomeMissing}, false, nil
		}
		return Result{NodeID: file.ID, Outcome: OutcomeUnchanged}, false, nil
	}

	dirty := false
	before := card.Rect()

	text := CardText(note)
	if card.Text != text {
		card.Text = text
		dirty = true
	}
	if e.opts.SyncSize {
		size, err := e.measurer.Measure(text)
		if err != nil {
			return Result{}, false, fmt.Errorf("cards: measure: %w", err)
		}
		if math.Abs(card.Width-size.Width) > e.opts.Tolerance || math.Abs(card.Height-size.Height) > e.opts.Tolerance {
			card.Width, card.Height = size.Width, size.Height
			dirty = true
		}
	}

	res := Result{NodeID: card.ID, Outcome: OutcomeUnchanged}
	if e.opts.GroupSynthesis {
		label := models.Basename(note.Path)
		group := enclosingGroup(doc, before, label)
		switch {
		case group == nil:
			group = newGroup(doc, label, card.Rect(), card.ID)
			doc.Prepend(group)
			dirty = true
		case group.Rect() == before && before != card.Rect():
			// The group framed the card exactly; keep it framing after a resize.
			group.SetRect(card.Rect())
		}
		res.GroupID = group.ID
	}
	if dirty {
		res.Outcome = OutcomeSynced
	}
	return res, dirty, nil
}

// enclosingGroup returns the group labelled label that frames a card with
// geometry before.
func enclosingGroup(doc *canvas.Document, before canvas.Rect, label string) *canvas.Node {
	for _, g := range doc.OfType(canvas.TypeGroup) {
		if g.Label == label && g.Rect().Contains(before) {
			return g
		}
	}
	return nil
}

func newGroup(doc *canvas.Document, label string, rect canvas.Rect, avoid string) *canvas.Node {
	id := doc.NewNodeID()
	for id == avoid {
		id = doc.NewNodeID()
	}
	g := &canvas.Node{ID: id, Type: canvas.TypeGroup, Label: label}
	g.SetRect(rect)
	return g
}

// AdjustGroups snaps each group to the card it frames. Groups that contain
// more than one node are left alone. It returns the number of groups moved.
func (e *Engine) AdjustGroups(doc *canvas.Document) int {
	var members []*canvas.Node
	for _, n := range doc.Nodes {
		if n.Type != canvas.TypeGroup {
			members = append(members, n)
		}
	}

	changed := 0
	for _, g := range doc.OfType(canvas.TypeGroup) {
		var inside []*canvas.Node
		for _, n := range members {
			if g.Contains(n) {
				inside = append(inside, n)
			}
		}
		if len(inside) > 1 || g.Label == "" {
			continue
		}
		card := groupCard(g, members, inside)
		if card == nil || g.Rect() == card.Rect() {
			continue
		}
		g.SetRect(card.Rect())
		changed++
	}
	return changed
}

// groupCard picks the node g's label names, preferring one already inside g.
func groupCard(g *canvas.Node, members, inside []*canvas.Node) *canvas.Node {
	for _, n := range inside {
		if matchesLabel(n, g.Label) {
			return n
		}
	}
	for _, n := range members {
		if matchesLabel(n, g.Label) {
			return n
		}
	}
	return nil
}
