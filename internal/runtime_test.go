package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRuntime_CloseClearsReferences(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(dir, "vault")
	cfg.SQLite.Path = filepath.Join(dir, "cache.db")
	cfg.Index.BatchIdle = 0

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"n.md":     "# N",
		"a.canvas": `{"nodes":[{"id":"1","type":"file","file":"n.md","x":0,"y":0,"width":10,"height":10}]}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(cfg.Vault.Path, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rt, err := Open(cfg, NewLogger(cfg.App, io.Discard), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := rt.Service.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rt.refs.Len() != 1 {
		t.Fatalf("refs = %d before close, want 1", rt.refs.Len())
	}

	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if rt.refs.Len() != 0 {
		t.Errorf("refs = %d after close, want 0", rt.refs.Len())
	}
}
