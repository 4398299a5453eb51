// Package accounts holds the tracked-account list and its persisted
// "handle:mode,handle:mode" form.
package accounts

import (
	"strings"
)

// Mode is a set of notification channels for one account.
type Mode uint8

const (
	View Mode = 1 << iota
	Sound

	Disabled     Mode = 0
	ViewAndSound      = View | Sound
)

// Has reports whether every flag in f is set.
func (m Mode) Has(f Mode) bool {
	return f != 0 && m&f == f
}

// String returns the canonical persisted name.
func (m Mode) String() string {
	switch m {
	case View:
		return "View"
	case Sound:
		return "Sound"
	case ViewAndSound:
		return "ViewAndSound"
	default:
		return "Disabled"
	}
}

// ParseMode reads a persisted mode name. Matching is case-insensitive and by
// substring, so "ViewOnly" and "View and Sound" are understood. Unknown
// names mean Disabled.
func ParseMode(s string) Mode {
	s = strings.ToLower(strings.TrimSpace(s))
	var m Mode
	if strings.Contains(s, "view") {
		m |= View
	}
	if strings.Contains(s, "sound") {
		m |= Sound
	}
	return m
}

// Account is one tracked handle.
type Account struct {
	Handle string
	Mode   Mode
}

// Key is the case-insensitive identity of the account.
func (a Account) Key() string {
	return Key(a.Handle)
}

// Key normalises a handle or author string for comparison.
func Key(handle string) string {
	return strings.ToLower(NormalizeHandle(handle))
}

// NormalizeHandle trims whitespace and any leading '@'.
func NormalizeHandle(handle string) string {
	return strings.TrimLeft(strings.TrimSpace(handle), "@")
}

// Parse reads the persisted account list. Empty items and items with an
// empty handle are dropped; an item without ":" is Disabled; repeated
// handles keep their first occurrence.
func Parse(raw string) []Account {
	var out []Account
	seen := make(map[string]bool)

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		handle, mode, _ := strings.Cut(item, ":")
		acc := Account{Handle: NormalizeHandle(handle), Mode: ParseMode(mode)}
		if acc.Handle == "" || seen[acc.Key()] {
			continue
		}
		seen[acc.Key()] = true
		out = append(out, acc)
	}
	return out
}

// Serialize renders accounts in the persisted form read by Parse.
func Serialize(list []Account) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, a.Handle+":"+a.Mode.String())
	}
	return strings.Join(parts, ",")
}

// Enabled filters out Disabled accounts, keeping order.
func Enabled(list []Account) []Account {
	var out []Account
	for _, a := range list {
		if a.Mode != Disabled {
			out = append(out, a)
		}
	}
	return out
}
