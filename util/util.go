package util

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Returns the current unix time in seconds
func EpochSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(1e9)
}

// Returns the paths of the regular files in dir whose name ends with ext, sorted by name.
func ListFiles(dir string, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	return files, nil
}

// Returns the base name of path without its last extension ("data/orders.tbl" -> "orders")
func TrimExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
