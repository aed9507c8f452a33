package util

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

func FileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func MakeDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		// Show a nicer error message if it's because a symlink
		// is linked to a directory that does not exist
		// (probably because it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			link, lerr := os.Readlink(e.Path)
			if lerr == nil {
				return fmt.Errorf("is symlink %s -> %s mounted?", e.Path, link)
			}
		}

		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	return nil
}
