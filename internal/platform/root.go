package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigNames are the configuration files FindConfig looks for, in order.
var ConfigNames = []string{"loci.yaml", "loci.yml", "loci.toml"}

// FindRoot recursively looks upwards for a store root indicator: a .loci
// directory, a .git directory or a loci config file. It returns the
// absolute path of the first directory that has one.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	markers := append([]string{".loci", ".git"}, ConfigNames...)
	dir := abs
	for {
		for _, m := range markers {
			if hasFile(dir, m) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

// FindConfig returns the path of the config file at the root enclosing
// startDir, or "" when there is none.
func FindConfig(startDir string) string {
	root, err := FindRoot(startDir)
	if err != nil {
		return ""
	}
	for _, name := range ConfigNames {
		if hasFile(root, name) {
			return filepath.Join(root, name)
		}
	}
	return ""
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
