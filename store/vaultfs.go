package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Hussein-Mazeh/pwtrainer/internal/vault"
	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

// DefaultFilename is the store file used when no path is configured.
const DefaultFilename = "store.bin"

// beforeReplace runs after the temp file is durable and before it replaces the store.
// Tests use it to simulate a crash at the worst moment.
var beforeReplace = func(tmpPath string) error { return nil }

// LoadStore reads and decodes the store at path.
// A missing file is reported as an error satisfying errors.Is(err, os.ErrNotExist).
func LoadStore(path string) (*vault.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	st, err := vault.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return st, nil
}

// OpenStore loads the store at path, or returns a new empty store when the file
// does not exist yet. created reports the latter case; nothing is written.
func OpenStore(path string, params krypto.Params) (st *vault.Store, created bool, err error) {
	st, err = LoadStore(path)
	switch {
	case err == nil:
		if err := st.SetParams(params); err != nil {
			return nil, false, fmt.Errorf("apply hash parameters: %w", err)
		}
		return st, false, nil
	case errors.Is(err, os.ErrNotExist):
		st, err = vault.New(params)
		if err != nil {
			return nil, false, fmt.Errorf("create store: %w", err)
		}
		return st, true, nil
	default:
		return nil, false, err
	}
}

// SaveStore persists st at path atomically with restrictive permissions.
// The previous file stays intact until the new one is fully written.
func SaveStore(path string, st *vault.Store) error {
	data, err := st.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp store: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil && runtime.GOOS != "windows" {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp store: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp store: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp store: %w", err)
	}

	if err := beforeReplace(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace store: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace store: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
