// Package navigation derives breadcrumb trails and prev/next neighbours from
// note relationship fields.
package navigation

import (
	"errors"
	"fmt"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/index"
	"github.com/starford/cardsync/internal/links"
	"github.com/starford/cardsync/internal/models"
)

// Metadata looks up note metadata by path.
type Metadata interface {
	Get(path string) (models.NoteMeta, error)
}

// RelationScanner lists every stored relation of one kind across the vault.
type RelationScanner interface {
	Relations(kind string) ([]index.Relation, error)
}

// Navigator resolves parent chains and sibling links.
type Navigator struct {
	notes    Metadata
	resolver links.Resolver
	scanner  RelationScanner
}

// New creates a navigator. A nil scanner limits Neighbors to the note's own
// prev/next fields.
func New(notes Metadata, resolver links.Resolver, scanner RelationScanner) *Navigator {
	return &Navigator{notes: notes, resolver: resolver, scanner: scanner}
}

// Neighbors holds prev/next candidates for a note.
type Neighbors struct {
	Prev []string `json:"prev"`
	Next []string `json:"next"`
}

// Parent returns the resolved first "up" entry of notePath.
func (n *Navigator) Parent(notePath string) (string, bool, error) {
	meta, err := n.notes.Get(notePath)
	if err != nil {
		return "", false, err
	}
	return n.parentOf(meta)
}

func (n *Navigator) parentOf(meta models.NoteMeta) (string, bool, error) {
	if len(meta.Relations.Up) == 0 {
		return "", false, nil
	}
	p, ok := n.resolver.Resolve(meta.Relations.Up[0], meta.Path)
	return p, ok, nil
}

// Ancestors returns the parent chain of notePath, nearest first, excluding
// notePath itself. A repeated path ends the climb.
func (n *Navigator) Ancestors(notePath string) ([]string, error) {
	visited := map[string]struct{}{notePath: {}}
	var out []string
	current := notePath
	for {
		meta, err := n.notes.Get(current)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) && current != notePath {
				return out, nil
			}
			return nil, fmt.Errorf("navigation: %q: %w", current, err)
		}
		parent, ok, err := n.parentOf(meta)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if _, seen := visited[parent]; seen {
			return out, nil
		}
		visited[parent] = struct{}{}
		out = append(out, parent)
		current = parent
	}
}

// Breadcrumbs returns the chain from the root ancestor down to notePath,
// notePath included.
func (n *Navigator) Breadcrumbs(notePath string) ([]string, error) {
	ancestors, err := n.Ancestors(notePath)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		out = append(out, ancestors[i])
	}
	return append(out, notePath), nil
}

// Neighbors merges the note's own prev/next links with notes whose next
// names it (prev candidates) or whose prev names it (next candidates).
func (n *Navigator) Neighbors(notePath string) (Neighbors, error) {
	meta, err := n.notes.Get(notePath)
	if err != nil {
		return Neighbors{}, fmt.Errorf("navigation: %q: %w", notePath, err)
	}

	prev := newOrderedSet(notePath)
	next := newOrderedSet(notePath)
	prev.add(links.ResolveAll(n.resolver, meta.Relations.Prev, notePath)...)
	next.add(links.ResolveAll(n.resolver, meta.Relations.Next, notePath)...)

	if n.scanner != nil {
		back, err := n.backReferences(models.RelNext, notePath)
		if err != nil {
			return Neighbors{}, err
		}
		prev.add(back...)
		back, err = n.backReferences(models.RelPrev, notePath)
		if err != nil {
			return Neighbors{}, err
		}
		next.add(back...)
	}
	return Neighbors{Prev: prev.items, Next: next.items}, nil
}

// backReferences returns the sources of kind relations that resolve to target.
func (n *Navigator) backReferences(kind, target string) ([]string, error) {
	rels, err := n.scanner.Relations(kind)
	if err != nil {
		return nil, fmt.Errorf("navigation: scan %s: %w", kind, err)
	}
	var out []string
	for _, r := range rels {
		if p, ok := n.resolver.Resolve(r.Target, r.Source); ok && p == target {
			out = append(out, r.Source)
		}
	}
	return out, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(exclude string) *orderedSet {
	return &orderedSet{seen: map[string]struct{}{exclude: {}}, items: []string{}}
}

func (s *orderedSet) add(items ...string) {
	for _, it := range items {
		if _, ok := s.seen[it]; ok {
			continue
		}
		s.seen[it] = struct{}{}
		s.items = append(s.items, it)
	}
}
