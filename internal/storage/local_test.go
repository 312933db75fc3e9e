package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestLocalAdapter(t *testing.T) {
	tmpDir := t.TempDir()

	adapter, err := NewLocalAdapter(tmpDir)
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	defer adapter.Close()

	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		data := []byte(`{"id":"story-1","title":"The Honest Merchant"}`)
		path := "stories/story-1/story.json"

		if err := adapter.Put(ctx, path, bytes.NewReader(data)); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		reader, err := adapter.Get(ctx, path)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		defer reader.Close()

		got, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}

		if !bytes.Equal(got, data) {
			t.Errorf("data mismatch: got %s, want %s", got, data)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		path := "stories/story-2/illustrations/scene_0.png"

		exists, err := adapter.Exists(ctx, path)
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if exists {
			t.Error("expected path to not exist")
		}

		if err := adapter.Put(ctx, path, bytes.NewReader([]byte("png bytes"))); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		exists, err = adapter.Exists(ctx, path)
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if !exists {
			t.Error("expected path to exist")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		path := "exports/story-3.zip"

		if err := adapter.Put(ctx, path, bytes.NewReader([]byte("zip"))); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		if err := adapter.Delete(ctx, path); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}

		exists, err := adapter.Exists(ctx, path)
		if err != nil {
			t.Fatalf("failed to check existence: %v", err)
		}
		if exists {
			t.Error("expected path to be deleted")
		}

		// Deleting again should not error
		if err := adapter.Delete(ctx, path); err != nil {
			t.Errorf("delete of missing path should be nil, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		files := []string{
			"stories/story-4/story.json",
			"stories/story-4/illustrations/scene_0.png",
			"stories/story-4/illustrations/scene_1.png",
			"stories/story-5/story.json",
		}

		for _, f := range files {
			if err := adapter.Put(ctx, f, bytes.NewReader([]byte("x"))); err != nil {
				t.Fatalf("failed to put %s: %v", f, err)
			}
		}

		paths, err := adapter.List(ctx, "stories/story-4/")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}

		if len(paths) != 3 {
			t.Errorf("expected 3 paths, got %d: %v", len(paths), paths)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := adapter.Get(ctx, "stories/nonexistent/story.json")
		if err == nil {
			t.Error("expected error for missing object")
		}
	})
}
