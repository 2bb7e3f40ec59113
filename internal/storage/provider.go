// Package storage gives the companion access to vault notes and canvases.
package storage

import "github.com/starford/cardsync/internal/models"

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every file under dir whose name ends in ext.
	// An empty ext lists notes and canvases alike.
	List(dir, ext string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Stat returns the checksum and modification time of the file at path.
	Stat(path string) (models.FileMeta, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
}
