package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/cardsync/internal/checksum"
	"github.com/starford/cardsync/internal/models"
)

// tmpPrefix marks in-flight atomic writes; List skips these files.
const tmpPrefix = ".cardsync-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns metadata for every file with
// the given extension. Hidden directories such as .obsidian are skipped.
func (f *FS) List(dir, ext string) ([]models.FileMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if p != base && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, tmpPrefix) || !matchExt(name, ext) {
			return nil
		}
		meta, err := f.stat(p)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

func matchExt(name, ext string) bool {
	if ext == "" {
		return strings.HasSuffix(name, models.NoteExt) || strings.HasSuffix(name, models.CanvasExt)
	}
	return strings.HasSuffix(name, ext)
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Stat hashes the file at path and reports its modification time.
func (f *FS) Stat(path string) (models.FileMeta, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	return f.stat(abs)
}

func (f *FS) stat(abs string) (models.FileMeta, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return models.FileMeta{}, fmt.Errorf("storage: not a regular file: %s", abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: stat: %w", err)
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return models.FileMeta{}, fmt.Errorf("storage: stat: %w", err)
	}
	return models.FileMeta{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Exists reports whether path names a regular file inside the vault.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}
