// Package settings exposes the user-facing configuration keys as a small
// key/value store. Every change is saved to the config file and announced
// to subscribers, and edits made to the file by hand are picked up too.
package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tweetwatch/pkg/config"
	"tweetwatch/pkg/logger"
)

// Setting keys.
const (
	KeyTwitterAccounts = "TwitterAccounts"
	KeyBaseURL         = "BaseUrl"
	KeyUpdateTime      = "UpdateTime"
	KeyVoice           = "Voice"
	KeyVolume          = "Volume"
	KeyTheme           = "Theme"
	KeyCookiesFileName = "CookiesFileName"
	KeySelector        = "Selector"
	KeyFirstRun        = "FirstRun"
)

var ErrUnknownKey = errors.New("unknown setting")

// Change describes one modified key.
type Change struct {
	Key string
	Old string
	New string
}

type field struct {
	get func(*config.SettingsConfig) string
	set func(*config.SettingsConfig, string) error
}

func text(p func(*config.SettingsConfig) *string) field {
	return field{
		get: func(s *config.SettingsConfig) string { return *p(s) },
		set: func(s *config.SettingsConfig, v string) error { *p(s) = v; return nil },
	}
}

func number(p func(*config.SettingsConfig) *int, check func(int) error) field {
	return field{
		get: func(s *config.SettingsConfig) string { return strconv.Itoa(*p(s)) },
		set: func(s *config.SettingsConfig, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("not a number: %q", v)
			}
			if err := check(n); err != nil {
				return err
			}
			*p(s) = n
			return nil
		},
	}
}

var fields = map[string]field{
	KeyTwitterAccounts: text(func(s *config.SettingsConfig) *string { return &s.TwitterAccounts }),
	KeyBaseURL: {
		get: func(s *config.SettingsConfig) string { return s.BaseURL },
		set: func(s *config.SettingsConfig, v string) error {
			if err := config.ValidateBaseURL(v); err != nil {
				return err
			}
			s.BaseURL = v
			return nil
		},
	},
	KeyUpdateTime: number(func(s *config.SettingsConfig) *int { return &s.UpdateTime }, func(n int) error {
		if n <= 0 {
			return errors.New("must be a positive number of seconds")
		}
		return nil
	}),
	KeyVoice: text(func(s *config.SettingsConfig) *string { return &s.Voice }),
	KeyVolume: number(func(s *config.SettingsConfig) *int { return &s.Volume }, func(n int) error {
		if n < 0 || n > 100 {
			return errors.New("must be between 0 and 100")
		}
		return nil
	}),
	KeyTheme: {
		get: func(s *config.SettingsConfig) string { return s.Theme },
		set: func(s *config.SettingsConfig, v string) error {
			if !config.ValidTheme(v) {
				return fmt.Errorf("must be Dark or Light, got %q", v)
			}
			s.Theme = v
			return nil
		},
	},
	KeyCookiesFileName: text(func(s *config.SettingsConfig) *string { return &s.CookiesFileName }),
	KeySelector:        text(func(s *config.SettingsConfig) *string { return &s.Selector }),
	KeyFirstRun: {
		get: func(s *config.SettingsConfig) string { return strconv.FormatBool(s.FirstRun) },
		set: func(s *config.SettingsConfig, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("not a boolean: %q", v)
			}
			s.FirstRun = b
			return nil
		},
	},
}

// Keys lists the setting keys in display order.
func Keys() []string {
	return []string{
		KeyTwitterAccounts, KeyBaseURL, KeyUpdateTime, KeyVoice, KeyVolume,
		KeyTheme, KeyCookiesFileName, KeySelector, KeyFirstRun,
	}
}

// Store is safe for concurrent use. Subscribers run synchronously on the
// goroutine that made the change, after the store lock is released.
type Store struct {
	mu   sync.RWMutex
	cfg  *config.Config
	path string

	subMu sync.RWMutex
	subs  []func(Change)

	saveMu sync.Mutex
	log    logger.Logger
}

// New wraps cfg, which is saved to path on every Set. An empty path means
// config.DefaultPath().
func New(cfg *config.Config, path string, log logger.Logger) *Store {
	if path == "" {
		path = config.DefaultPath()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{cfg: cfg, path: path, log: log.WithField("component", "settings")}
}

// Path is the file the store saves to.
func (s *Store) Path() string {
	return s.path
}

// Settings returns a copy of the current values.
func (s *Store) Settings() config.SettingsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Settings
}

func (s *Store) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.get(&s.cfg.Settings), nil
}

// Set validates value, saves the file and notifies subscribers. Setting a
// key to its current value saves nothing and notifies no one.
func (s *Store) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	s.saveMu.Lock()
	s.mu.Lock()
	old := f.get(&s.cfg.Settings)
	next := s.cfg.Settings
	if err := f.set(&next, value); err != nil {
		s.mu.Unlock()
		s.saveMu.Unlock()
		return fmt.Errorf("%s: %w", key, err)
	}
	value = f.get(&next)
	if value == old {
		s.mu.Unlock()
		s.saveMu.Unlock()
		return nil
	}

	prev := s.cfg.Settings
	s.cfg.Settings = next
	snapshot := *s.cfg
	s.mu.Unlock()

	err := snapshot.Save(s.path)
	if err != nil {
		s.mu.Lock()
		s.cfg.Settings = prev
		s.mu.Unlock()
	}
	s.saveMu.Unlock()
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	s.log.DebugWithFields("Setting changed", map[string]interface{}{"key": key, "value": value})
	s.emit(Change{Key: key, Old: old, New: value})
	return nil
}

// SaveAccounts stores the serialized account list. It lets the store act
// as the account registry's persister.
func (s *Store) SaveAccounts(serialized string) error {
	return s.Set(KeyTwitterAccounts, serialized)
}

// Subscribe registers fn for every future change.
func (s *Store) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

func (s *Store) emit(changes ...Change) {
	s.subMu.RLock()
	subs := make([]func(Change), len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// Reload re-reads the file and emits a change for every key that differs.
// An unreadable or invalid file leaves the current values in place.
func (s *Store) Reload() error {
	fresh := config.DefaultConfig()
	if _, err := fresh.LoadFromFile(s.path); err != nil {
		return err
	}

	s.mu.Lock()
	candidate := *s.cfg
	candidate.Settings = fresh.Settings
	if err := candidate.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("ignoring invalid settings: %w", err)
	}

	var changes []Change
	for _, key := range Keys() {
		f := fields[key]
		old, next := f.get(&s.cfg.Settings), f.get(&fresh.Settings)
		if old != next {
			changes = append(changes, Change{Key: key, Old: old, New: next})
		}
	}
	s.cfg.Settings = fresh.Settings
	s.mu.Unlock()

	if len(changes) > 0 {
		s.log.InfoWithFields("Settings reloaded", map[string]interface{}{"changed": len(changes)})
	}
	s.emit(changes...)
	return nil
}

// debounce groups the burst of events an editor produces when saving.
const debounce = 100 * time.Millisecond

// Watch reloads the file whenever it changes on disk until ctx ends.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: Save replaces the file by rename.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("Settings watcher error")
		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.log.WithError(err).Warn("Settings reload failed")
			}
		}
	}
}
