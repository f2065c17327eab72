package diskworker

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileDurable writes data to path atomically and durably.
//
// Parent directories are created as needed. Data goes to a temporary file in
// the target directory, is fsynced, and is renamed over path, so readers see
// either the old content or the new content and never a partial write.
func WriteFileDurable(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dirs for %s: %v: %w", path, err, ErrIO)
	}

	tmp, err := os.CreateTemp(dir, ".tiercache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %v: %w", path, err, ErrIO)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %v: %w", path, err, ErrIO)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync %s: %v: %w", path, err, ErrIO)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %v: %w", path, err, ErrIO)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %v: %w", path, err, ErrIO)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry for a rename. Best effort: some
// platforms cannot open directories for sync.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
