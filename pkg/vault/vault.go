// Package vault keeps exported browser cookies out of plain files. Entries
// are stored in the system keychain when one is available, with an
// encrypted file as fallback and environment variables as a read-only last
// resort.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"tweetwatch/pkg/cookies"
)

var (
	// ErrNotFound is the cookies package sentinel, so a vault can serve
	// as a cookies.VaultReader directly.
	ErrNotFound         = cookies.ErrNotStored
	ErrInvalidName      = errors.New("invalid vault entry name")
	ErrStoreUnavailable = errors.New("vault store unavailable")
)

// Store is one storage backend.
type Store interface {
	Name() string
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Delete(name string) error
}

// Manager tries its stores in order.
type Manager struct {
	stores []Store
}

// NewManager builds the default chain: keychain, encrypted file in dir,
// environment. passphrase is asked for only when the file store is used.
func NewManager(dir string, passphrase PassphraseFunc) (*Manager, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}

	var stores []Store
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	stores = append(stores,
		NewEncryptedFileStore(filepath.Join(dir, "cookies.enc"), passphrase),
		NewEnvironmentStore(),
	)
	return &Manager{stores: stores}, nil
}

// NewManagerWith uses the given stores, in order.
func NewManagerWith(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Put saves data in the first store that accepts it and returns that
// store's name.
func (m *Manager) Put(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	var errs []error
	for _, s := range m.stores {
		err := s.Put(name, data)
		if err == nil {
			return s.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrStoreUnavailable
	}
	return "", fmt.Errorf("failed to store %q: %w", name, errors.Join(errs...))
}

// Get returns the entry from the first store that has it.
func (m *Manager) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	var errs []error
	for _, s := range m.stores {
		data, err := s.Get(name)
		switch {
		case err == nil:
			return data, nil
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Delete removes the entry from every store holding it.
func (m *Manager) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	var deleted bool
	var errs []error
	for _, s := range m.stores {
		err := s.Delete(name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\: \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ConfigDir returns the per-user directory for vault files, creating it.
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "tweetwatch")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "tweetwatch")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "tweetwatch")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "tweetwatch")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Mask hides all but the ends of a secret for display.
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
