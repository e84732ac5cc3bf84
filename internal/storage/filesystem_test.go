package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	key, err := store.Write(context.Background(), "scenes/batch-1/scene-01.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if key != "scenes/batch-1/scene-01.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "scenes", "batch-1", "scene-01.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored data = %q", data)
	}

	if got := store.URL(key); got != "http://localhost:8080/static/scenes/batch-1/scene-01.png" {
		t.Fatalf("URL() = %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	for _, key := range []string{"", "   ", "../escape.png", "a/../../escape.png"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) succeeded, want error", key)
		}
	}
}
