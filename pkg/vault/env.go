package vault

import (
	"os"
	"strings"
)

// EnvironmentStore reads TWEETWATCH_COOKIES_<NAME>, for containers and CI.
// It cannot be written to.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore { return &EnvironmentStore{} }

func (EnvironmentStore) Name() string { return "environment" }

func envKey(name string) string {
	return "TWEETWATCH_COOKIES_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func (EnvironmentStore) Put(name string, data []byte) error { return ErrStoreUnavailable }

func (EnvironmentStore) Get(name string) ([]byte, error) {
	v := os.Getenv(envKey(name))
	if v == "" {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (EnvironmentStore) Delete(name string) error { return ErrStoreUnavailable }
