package accounts

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicate   = errors.New("account already tracked")
	ErrNotFound    = errors.New("account not tracked")
	ErrEmptyHandle = errors.New("account handle is empty")
)

// Persister stores the serialized account list.
type Persister interface {
	SaveAccounts(serialized string) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(string) error

func (f PersisterFunc) SaveAccounts(s string) error { return f(s) }

// Registry is the live account list. Mutations are persisted immediately;
// readers take a Snapshot so a running cycle never sees a half-applied edit.
type Registry struct {
	mu       sync.RWMutex
	accounts []Account
	persist  Persister
}

// NewRegistry creates a registry seeded with list. persist may be nil.
func NewRegistry(list []Account, persist Persister) *Registry {
	r := &Registry{persist: persist}
	r.accounts = dedup(list)
	return r
}

// Snapshot returns a copy of the current list.
func (r *Registry) Snapshot() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Find looks up an account by handle, ignoring case and '@'.
func (r *Registry) Find(handle string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(Key(handle)); i >= 0 {
		return r.accounts[i], true
	}
	return Account{}, false
}

// Add appends a new account.
func (r *Registry) Add(handle string, mode Mode) error {
	acc := Account{Handle: NormalizeHandle(handle), Mode: mode}
	if acc.Handle == "" {
		return ErrEmptyHandle
	}

	return r.mutate(func() error {
		if r.index(acc.Key()) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicate, acc.Handle)
		}
		r.accounts = append(r.accounts, acc)
		return nil
	})
}

// Remove deletes an account.
func (r *Registry) Remove(handle string) error {
	return r.mutate(func() error {
		i := r.index(Key(handle))
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, NormalizeHandle(handle))
		}
		r.accounts = append(r.accounts[:i:i], r.accounts[i+1:]...)
		return nil
	})
}

// SetMode changes the notification mode of an account.
func (r *Registry) SetMode(handle string, mode Mode) error {
	return r.mutate(func() error {
		i := r.index(Key(handle))
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, NormalizeHandle(handle))
		}
		r.accounts[i].Mode = mode
		return nil
	})
}

// Replace swaps the whole list, for example after the settings file was
// edited externally. It is not persisted back.
func (r *Registry) Replace(list []Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = dedup(list)
}

// Serialize renders the current list.
func (r *Registry) Serialize() string {
	return Serialize(r.Snapshot())
}

// mutate applies fn under the lock and persists the result outside it, so a
// persister that notifies subscribers may call back into the registry.
func (r *Registry) mutate(fn func() error) error {
	r.mu.Lock()
	before := make([]Account, len(r.accounts))
	copy(before, r.accounts)

	if err := fn(); err != nil {
		r.mu.Unlock()
		return err
	}
	serialized := Serialize(r.accounts)
	r.mu.Unlock()

	if r.persist == nil {
		return nil
	}
	if err := r.persist.SaveAccounts(serialized); err != nil {
		r.mu.Lock()
		r.accounts = before
		r.mu.Unlock()
		return fmt.Errorf("failed to persist accounts: %w", err)
	}
	return nil
}

func (r *Registry) index(key string) int {
	for i, a := range r.accounts {
		if a.Key() == key {
			return i
		}
	}
	return -1
}

func dedup(list []Account) []Account {
	out := make([]Account, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, a := range list {
		a.Handle = NormalizeHandle(a.Handle)
		if a.Handle == "" || seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		out = append(out, a)
	}
	return out
}
