package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tweetwatch/pkg/config"
	"tweetwatch/pkg/logger"
)

type changeLog struct {
	mu      sync.Mutex
	changes []Change
}

func (c *changeLog) add(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *changeLog) all() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.changes...)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	return New(config.DefaultConfig(), path, logger.NewNopLogger()), path
}

func TestGetDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	tests := map[string]string{
		KeyBaseURL:    "https://x.com/{account}",
		KeyUpdateTime: "60",
		KeyVolume:     "100",
		KeyTheme:      "Dark",
		KeyFirstRun:   "true",
		KeySelector:   "",
	}
	for key, want := range tests {
		got, err := s.Get(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err := s.Get("Nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestSetPersistsAndNotifies(t *testing.T) {
	s, path := newTestStore(t)
	log := &changeLog{}
	s.Subscribe(log.add)

	require.NoError(t, s.Set(KeyUpdateTime, "30"))

	assert.Equal(t, []Change{{Key: KeyUpdateTime, Old: "60", New: "30"}}, log.all())
	assert.Equal(t, 30, s.Settings().UpdateTime)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved config.Config
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, 30, saved.Settings.UpdateTime)
}

func TestSetSameValueIsSilent(t *testing.T) {
	s, path := newTestStore(t)
	log := &changeLog{}
	s.Subscribe(log.add)

	require.NoError(t, s.Set(KeyTheme, "Dark"))

	assert.Empty(t, log.all())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSetValidation(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{KeyUpdateTime, "0"},
		{KeyUpdateTime, "soon"},
		{KeyVolume, "101"},
		{KeyVolume, "-1"},
		{KeyTheme, "Solarized"},
		{KeyBaseURL, "ftp://x.com/{account}"},
		{KeyBaseURL, ""},
		{KeyFirstRun, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s, _ := newTestStore(t)
			before := s.Settings()
			assert.Error(t, s.Set(tt.key, tt.value))
			assert.Equal(t, before, s.Settings())
		})
	}

	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.Set("Colour", "red"), ErrUnknownKey)
}

func TestSetRollsBackWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	// The parent of the config path is a regular file, so saving fails.
	s := New(config.DefaultConfig(), filepath.Join(blocker, "config.yaml"), logger.NewNopLogger())
	log := &changeLog{}
	s.Subscribe(log.add)

	assert.Error(t, s.Set(KeyVolume, "50"))
	assert.Equal(t, 100, s.Settings().Volume)
	assert.Empty(t, log.all())
}

func TestSaveAccounts(t *testing.T) {
	s, _ := newTestStore(t)
	log := &changeLog{}
	s.Subscribe(log.add)

	require.NoError(t, s.SaveAccounts("alice:View,bob:Sound"))

	got, err := s.Get(KeyTwitterAccounts)
	require.NoError(t, err)
	assert.Equal(t, "alice:View,bob:Sound", got)
	require.Len(t, log.all(), 1)
	assert.Equal(t, KeyTwitterAccounts, log.all()[0].Key)
}

func TestReloadEmitsChangedKeys(t *testing.T) {
	s, path := newTestStore(t)
	log := &changeLog{}
	s.Subscribe(log.add)

	edited := config.DefaultConfig()
	edited.Settings.Selector = "css-1dbjc4n"
	edited.Settings.Volume = 40
	require.NoError(t, edited.Save(path))

	require.NoError(t, s.Reload())

	assert.ElementsMatch(t, []Change{
		{Key: KeyVolume, Old: "100", New: "40"},
		{Key: KeySelector, Old: "", New: "css-1dbjc4n"},
	}, log.all())
}

func TestReloadIgnoresInvalidFile(t *testing.T) {
	s, path := newTestStore(t)
	log := &changeLog{}
	s.Subscribe(log.add)

	edited := config.DefaultConfig()
	edited.Settings.Theme = "Neon"
	require.NoError(t, edited.Save(path))

	assert.Error(t, s.Reload())
	assert.Equal(t, "Dark", s.Settings().Theme)
	assert.Empty(t, log.all())
}

func TestWatchPicksUpExternalEdits(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, config.DefaultConfig().Save(path))

	log := &changeLog{}
	s.Subscribe(log.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	edited := config.DefaultConfig()
	edited.Settings.UpdateTime = 15

	// The watcher may not be registered yet on the first write.
	require.Eventually(t, func() bool {
		require.NoError(t, edited.Save(path))
		for _, c := range log.all() {
			if c.Key == KeyUpdateTime && c.New == "15" {
				return true
			}
		}
		return false
	}, 5*time.Second, 200*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
