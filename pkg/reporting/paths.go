package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultOutputPath returns results/<name>_<date>.<ext>
func DefaultOutputPath(name string, day time.Time, ext string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = "report"
	}
	return filepath.Join("results", fmt.Sprintf("%s_%s.%s", n, day.UTC().Format("20060102"), strings.TrimPrefix(ext, ".")))
}

// EnsureDirectoryExists creates the parent directory of path
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
