// Package models defines the domain types shared by cardsync packages.
package models

import (
	"path"
	"strings"
	"time"
)

// File extensions the companion cares about.
const (
	NoteExt   = ".md"
	CanvasExt = ".canvas"
)

// Relation kinds read from note frontmatter.
const (
	RelUp     = "up"
	RelPrev   = "prev"
	RelNext   = "next"
	RelCanvas = "canvas"
	RelInline = "inline"
)

// FileMeta is a lightweight representation returned by list operations.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relations holds the raw link targets of a note's relationship fields.
// Targets are unresolved; resolution is relative to the note's own path.
type Relations struct {
	Up     []string `json:"up,omitempty"`
	Prev   []string `json:"prev,omitempty"`
	Next   []string `json:"next,omitempty"`
	Canvas []string `json:"canvas,omitempty"`
}

// Of returns the targets for a relation kind.
func (r Relations) Of(kind string) []string {
	switch kind {
	case RelUp:
		return r.Up
	case RelPrev:
		return r.Prev
	case RelNext:
		return r.Next
	case RelCanvas:
		return r.Canvas
	}
	return nil
}

// NoteMeta is the structured metadata the companion needs for one note.
type NoteMeta struct {
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Relations   Relations `json:"relations"`
}

// Basename returns the file name of p without directory or extension.
func Basename(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// ReferenceKind classifies a note's relationship to one canvas.
type ReferenceKind string

const (
	ReferenceExisting  ReferenceKind = "existing"
	ReferencePotential ReferenceKind = "potential"
)

// ReferenceResult is one canvas a note is, or plausibly should be, drawn on.
type ReferenceResult struct {
	File string        `json:"file"`
	Kind ReferenceKind `json:"kind"`
}
