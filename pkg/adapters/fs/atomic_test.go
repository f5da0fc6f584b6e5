package fs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("Writes Binary Map", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "space.map")
		blob := []byte{0x00, 0x01, 0xfe, 0xff}

		if err := writeFileAtomic(filename, blob, 0644); err != nil {
			t.Fatalf("writeFileAtomic failed: %v", err)
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if !bytes.Equal(got, blob) {
			t.Errorf("expected %x, got %x", blob, got)
		}
	})

	t.Run("Overwrites And Leaves No Temp Files", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "a1.yaml")

		for _, content := range []string{"text: one\n", "text: two\n"} {
			if err := writeFileAtomic(filename, []byte(content), 0644); err != nil {
				t.Fatalf("writeFileAtomic failed: %v", err)
			}
		}

		got, err := os.ReadFile(filename)
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(got) != "text: two\n" {
			t.Errorf("expected second write, got %q", got)
		}

		entries, err := os.ReadDir(tmpDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), TempFilePrefix) {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("Fails if Directory Missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		filename := filepath.Join(tmpDir, "anchors", "a1.yaml")

		if err := writeFileAtomic(filename, []byte("fail"), 0644); err == nil {
			t.Error("Expected error when directory is missing, got nil")
		}
	})
}

func TestRemoveIfExists(t *testing.T) {
	tmpDir := t.TempDir()
	filename := filepath.Join(tmpDir, "gone.yaml")

	if err := removeIfExists(filename); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}

	if err := os.WriteFile(filename, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := removeIfExists(filename); err != nil {
		t.Fatalf("removeIfExists failed: %v", err)
	}
	if _, err := os.Stat(filename); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
}
