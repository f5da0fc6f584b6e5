package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".loci")

		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Loads Valid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".loci")
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			t.Fatal(err)
		}

		jsonContent := `{
			"version": 1,
			"entries": {
				"anchors/a1.yaml": {"id": "a1", "space_id": "s1"}
			}
		}`
		if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(jsonContent), 0644); err != nil {
			t.Fatal(err)
		}

		c := newCache(tmpDir, ".loci")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		entry, ok := c.index.Entries["anchors/a1.yaml"]
		if !ok {
			t.Fatal("Expected entry anchors/a1.yaml not found")
		}
		if entry.SpaceID != "s1" {
			t.Errorf("Expected space 's1', got '%s'", entry.SpaceID)
		}
	})

	t.Run("Resets on Corrupted or Outdated Index", func(t *testing.T) {
		for _, content := range []string{"{ invalid json", `{"version": 99, "entries": {"x": {"id": "x"}}}`} {
			tmpDir := t.TempDir()
			cacheDir := filepath.Join(tmpDir, ".loci")
			if err := os.MkdirAll(cacheDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(content), 0644); err != nil {
				t.Fatal(err)
			}

			c := newCache(tmpDir, ".loci")
			if err := c.Load(); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if c.Len() != 0 {
				t.Errorf("Expected empty entries for %q, got %d", content, c.Len())
			}
		}
	})
}

func TestCache_Save(t *testing.T) {
	t.Run("Does Not Save if Not Dirty", func(t *testing.T) {
		c := newCache(t.TempDir(), ".loci")

		if err := c.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
			t.Error("Expected index.json NOT to exist")
		}
	})

	t.Run("Saves if Dirty And Reloads", func(t *testing.T) {
		tmpDir := t.TempDir()
		c := newCache(tmpDir, ".loci")
		mtime := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		c.Set("anchors/a1.yaml", &indexEntry{ID: "a1", SpaceID: "s1", LastModified: mtime})

		if err := c.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if c.index.dirty {
			t.Error("Expected dirty to be false after save")
		}

		reloaded := newCache(tmpDir, ".loci")
		if err := reloaded.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if _, hit := reloaded.Get("anchors/a1.yaml", mtime); !hit {
			t.Error("Expected hit after reload")
		}
	})
}

func TestCache_Get_Set(t *testing.T) {
	c := newCache(t.TempDir(), ".loci")

	now := time.Now().Truncate(time.Second)
	c.Set("anchors/a1.yaml", &indexEntry{ID: "a1", SpaceID: "s1", LastModified: now})

	t.Run("Hit with Same Mtime", func(t *testing.T) {
		got, hit := c.Get("anchors/a1.yaml", now)
		if !hit {
			t.Fatal("Expected cache hit")
		}
		if got.SpaceID != "s1" {
			t.Errorf("Expected space 's1', got '%s'", got.SpaceID)
		}
	})

	t.Run("Miss with Different Mtime", func(t *testing.T) {
		if _, hit := c.Get("anchors/a1.yaml", now.Add(time.Hour)); hit {
			t.Error("Expected cache miss due to mtime mismatch")
		}
	})

	t.Run("Miss with Missing Key", func(t *testing.T) {
		if _, hit := c.Get("anchors/ghost.yaml", now); hit {
			t.Error("Expected cache miss for missing key")
		}
	})
}

func TestCache_PruneAndReset(t *testing.T) {
	c := newCache(t.TempDir(), ".loci")

	c.Set("anchors/keep.yaml", &indexEntry{ID: "keep"})
	c.Set("anchors/drop.yaml", &indexEntry{ID: "drop"})
	c.index.dirty = false

	c.Prune(map[string]bool{"anchors/keep.yaml": true})

	if _, ok := c.index.Entries["anchors/keep.yaml"]; !ok {
		t.Error("Expected keep to remain")
	}
	if _, ok := c.index.Entries["anchors/drop.yaml"]; ok {
		t.Error("Expected drop to be removed")
	}
	if !c.index.dirty {
		t.Error("Expected dirty to be true after pruning")
	}

	c.Delete("anchors/keep.yaml")
	c.Set("anchors/other.yaml", &indexEntry{ID: "other"})
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Expected empty after reset, got %d", c.Len())
	}
}
