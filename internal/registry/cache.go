package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fluxd/internal/common/fsutil"
)

// ScanCache lists model ids present in a Hugging Face style cache directory
// (entries named models--<org>--<name>). A missing directory yields nil.
func ScanCache(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if base == "" || !fsutil.PathExists(base) {
		return nil, nil
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "models--") {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(name, "models--"), "--")
		if len(parts) < 2 {
			continue
		}
		ids = append(ids, strings.Join(parts, "/"))
	}
	return ids, nil
}
