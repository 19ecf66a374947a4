package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the output directory while assets are written.
const LockFileName = ".skypack.lock"

func withLock(dir string, fn func() error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(dir, LockFileName))
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	return fn()
}

// emit writes every asset into dir. All assets are staged in temporary
// files first, so a failed write leaves the output directory untouched.
// Each staged file then replaces its target atomically; a rename failure
// part way through can leave the earlier assets already replaced.
func emit(dir string, assets []Asset) error {
	return withLock(dir, func() error {
		staged := make([]string, 0, len(assets))
		defer func() {
			for _, tmp := range staged {
				_ = os.Remove(tmp)
			}
		}()

		for _, asset := range assets {
			path := filepath.Join(dir, filepath.FromSlash(asset.Name))
			tmp, err := stageFile(path, []byte(asset.Source))
			if err != nil {
				return fmt.Errorf("write %s: %w", asset.Name, err)
			}
			staged = append(staged, tmp)
		}

		for i, asset := range assets {
			path := filepath.Join(dir, filepath.FromSlash(asset.Name))
			if err := os.Rename(staged[i], path); err != nil {
				return fmt.Errorf("write %s: %w", asset.Name, err)
			}
		}
		staged = staged[:0]
		return nil
	})
}

// stageFile writes data to a temporary file next to path and returns its name.
func stageFile(path string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.js")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
