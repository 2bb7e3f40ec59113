// Package vault implements link resolution and note metadata lookup over
// the vault's files.
package vault

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/starford/cardsync/internal/links"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/storage"
)

// Resolver maps wiki-link targets to vault paths. It keeps an in-memory name
// index that the owner updates as files come and go.
type Resolver struct {
	store storage.Provider

	mu     sync.RWMutex
	paths  map[string]struct{}
	byName map[string][]string // lower-cased file name → paths
}

var _ links.Resolver = (*Resolver)(nil)

// NewResolver builds a resolver populated from the store.
func NewResolver(store storage.Provider) (*Resolver, error) {
	r := &Resolver{store: store}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the name index from the store.
func (r *Resolver) Reload() error {
	metas, err := r.store.List("", "")
	if err != nil {
		return fmt.Errorf("vault: list: %w", err)
	}
	paths := make(map[string]struct{}, len(metas))
	byName := make(map[string][]string, len(metas))
	for _, m := range metas {
		paths[m.Path] = struct{}{}
		key := nameKey(m.Path)
		byName[key] = append(byName[key], m.Path)
	}

	r.mu.Lock()
	r.paths, r.byName = paths, byName
	r.mu.Unlock()
	return nil
}

// Add records a newly created file.
func (r *Resolver) Add(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[p]; ok {
		return
	}
	r.paths[p] = struct{}{}
	key := nameKey(p)
	r.byName[key] = append(r.byName[key], p)
}

// Remove forgets a deleted file.
func (r *Resolver) Remove(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[p]; !ok {
		return
	}
	delete(r.paths, p)
	key := nameKey(p)
	list := r.byName[key]
	for i, have := range list {
		if have == p {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.byName, key)
	} else {
		r.byName[key] = list
	}
}

// Resolve returns the vault path a link target points to, following the
// lookup order: exact path, path with .md appended, path relative to the
// source folder, then a case-insensitive file name match preferring the
// candidate closest to fromPath.
func (r *Resolver) Resolve(target, fromPath string) (string, bool) {
	t := strings.TrimPrefix(links.StripSubpath(target), "/")
	if t == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fromDir := path.Dir(fromPath)
	for _, c := range []string{t, t + models.NoteExt, path.Join(fromDir, t), path.Join(fromDir, t+models.NoteExt)} {
		if _, ok := r.paths[c]; ok {
			return c, true
		}
	}

	lower := strings.ToLower(t)
	var candidates []string
	for _, key := range []string{nameKey(t), nameKey(t + models.NoteExt)} {
		for _, p := range r.byName[key] {
			lp := strings.ToLower(p)
			if suffixMatch(lp, lower) || suffixMatch(lp, lower+models.NoteExt) {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := sharedDepth(fromDir, candidates[i]), sharedDepth(fromDir, candidates[j])
		if si != sj {
			return si > sj
		}
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], true
}

// Exists reports whether the resolver knows of p.
func (r *Resolver) Exists(p string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paths[p]
	return ok
}

func nameKey(p string) string {
	return strings.ToLower(path.Base(p))
}

func suffixMatch(p, suffix string) bool {
	return p == suffix || strings.HasSuffix(p, "/"+suffix)
}

// sharedDepth counts leading directory segments dir shares with p's folder.
func sharedDepth(dir, p string) int {
	if dir == "." {
		return 0
	}
	a := strings.Split(dir, "/")
	b := strings.Split(path.Dir(p), "/")
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
