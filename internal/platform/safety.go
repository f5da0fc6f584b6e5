package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// devDirName namespaces sandboxed stores under the system temp dir.
const devDirName = "loci-dev"

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}

	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveStorePath determines the actual store location based on safety
// rules. When forceTemp is set the location is re-rooted into a namespaced
// temp directory so dev runs never touch the user's real notes. Paths that
// already live under the temp dir (e.g. t.TempDir()) are trusted as is.
func ResolveStorePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	rel, err := filepath.Rel(os.TempDir(), clean)
	if err == nil && filepath.IsAbs(clean) && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := "default"
	if userPath != "" && userPath != "." && userPath != "./" {
		// Only the base name survives, which also drops traversal.
		if base := filepath.Base(userPath); base != "." && base != string(os.PathSeparator) {
			name = base
		}
	}
	return filepath.Join(os.TempDir(), devDirName, name)
}
