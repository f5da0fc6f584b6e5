package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/loci/internal/config"
)

// buildLociBinary builds the loci binary in the specified directory and
// returns its path.
func buildLociBinary(t *testing.T, dir string) string {
	t.Helper()
	bin := filepath.Join(dir, "loci.exe")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build loci: %v\n%s", err, string(out))
	}
	return bin
}

func runLoci(t *testing.T, bin string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("loci %s failed: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return string(out)
}

func TestCLI_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}

	tempDir := t.TempDir()
	bin := buildLociBinary(t, tempDir)

	for _, adapter := range []string{config.AdapterFS, config.AdapterSQLite} {
		t.Run(adapter, func(t *testing.T) {
			store := filepath.Join(tempDir, adapter, "notes")
			if adapter == config.AdapterSQLite {
				store += ".db"
			}
			flags := []string{"--adapter", adapter, "--store", store}

			out := runLoci(t, bin, append(flags, "simulate", "--note", "milk", "--note", "eggs", "--color", "green")...)
			if !strings.Contains(out, "phase restored, 2 notes visible") {
				t.Fatalf("simulate did not restore the notes:\n%s", out)
			}

			var spaces []spaceView
			if err := json.Unmarshal([]byte(runLoci(t, bin, append(flags, "spaces", "--json")...)), &spaces); err != nil {
				t.Fatal(err)
			}
			if len(spaces) != 1 || spaces[0].Anchors != 2 || !spaces[0].Current {
				t.Fatalf("unexpected spaces: %+v", spaces)
			}

			var notes []struct {
				ID    string
				Text  string
				Color string
			}
			if err := json.Unmarshal([]byte(runLoci(t, bin, append(flags, "anchors", "--json")...)), &notes); err != nil {
				t.Fatal(err)
			}
			if len(notes) != 2 || notes[0].Text != "milk" || notes[1].Color != "green" {
				t.Fatalf("unexpected notes: %+v", notes)
			}

			runLoci(t, bin, append(flags, "delete", notes[0].ID)...)
			runLoci(t, bin, append(flags, "delete", notes[0].ID)...)
			if err := json.Unmarshal([]byte(runLoci(t, bin, append(flags, "anchors", "--json")...)), &notes); err != nil {
				t.Fatal(err)
			}
			if len(notes) != 1 {
				t.Fatalf("expected one note after delete, got %d", len(notes))
			}

			runLoci(t, bin, append(flags, "reset", "--yes")...)
			if err := json.Unmarshal([]byte(runLoci(t, bin, append(flags, "spaces", "--json")...)), &spaces); err != nil {
				t.Fatal(err)
			}
			if len(spaces) != 0 {
				t.Fatalf("expected no spaces after reset, got %+v", spaces)
			}
		})
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loci.yaml")
	content := "store:\n  adapter: sqlite\n  path: from-file.db\nlogging:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	configPath, storePath, adapter, verbose = path, filepath.Join(dir, "flag.db"), "", true
	t.Cleanup(func() { configPath, storePath, adapter, verbose = "", "", "", false })

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.Store.Adapter != config.AdapterSQLite {
		t.Errorf("adapter = %q, want sqlite", c.Store.Adapter)
	}
	if c.Store.Path != storePath {
		t.Errorf("path = %q, want %q", c.Store.Path, storePath)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", c.Logging.Level)
	}
}
