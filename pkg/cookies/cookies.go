// Package cookies reads browser cookie exports used to authenticate the
// headless session.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	twerrors "tweetwatch/pkg/errors"
)

// VaultPrefix marks a cookie source stored in the vault instead of on disk.
const VaultPrefix = "vault:"

// SameSite is the normalised same-site policy of a cookie.
type SameSite int

const (
	SameSiteUnset SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	default:
		return "Unset"
	}
}

// ParseSameSite maps the values browser extensions export. Anything it
// does not recognise, including "unspecified", is Unset.
func ParseSameSite(s string) SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return SameSiteStrict
	case "lax":
		return SameSiteLax
	case "none", "no_restriction":
		return SameSiteNone
	default:
		return SameSiteUnset
	}
}

// Record is one cookie. Expires is seconds since the epoch; nil means a
// session cookie.
type Record struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
	Expires  *float64
}

// fileCookie is the on-disk shape. encoding/json matches keys
// case-insensitively, so both "HttpOnly" and "httpOnly" exports load.
type fileCookie struct {
	Domain         string   `json:"Domain"`
	ExpirationDate *float64 `json:"ExpirationDate"`
	HTTPOnly       bool     `json:"HttpOnly"`
	Name           string   `json:"Name"`
	Path           string   `json:"Path"`
	SameSite       string   `json:"SameSite"`
	Secure         bool     `json:"Secure"`
	Value          string   `json:"Value"`
}

// Parse decodes a cookie export. A JSON null counts as malformed.
func Parse(data []byte, source string) ([]Record, error) {
	var raw *[]fileCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, twerrors.CookieParse(source, err)
	}
	if raw == nil {
		return nil, twerrors.CookieParse(source, errors.New("cookie list is null"))
	}

	records := make([]Record, 0, len(*raw))
	for _, c := range *raw {
		records = append(records, Record{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: ParseSameSite(c.SameSite),
			Expires:  c.ExpirationDate,
		})
	}
	return records, nil
}

// Load reads a cookie file. A missing file yields no cookies and no error.
func Load(path string) ([]Record, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return Parse(data, path)
}

// VaultReader is the part of the vault the loader needs. It returns
// ErrNotStored when nothing is saved under name.
type VaultReader interface {
	Get(name string) ([]byte, error)
}

// ErrNotStored is returned by VaultReader implementations for a missing entry.
var ErrNotStored = errors.New("cookies not stored")

// Loader resolves a cookie source, either a file path or "vault:<name>".
type Loader struct {
	Vault VaultReader
}

// Load reads cookies from source, treating an absent source like an absent file.
func (l *Loader) Load(source string) ([]Record, error) {
	name, isVault := strings.CutPrefix(source, VaultPrefix)
	if !isVault {
		return Load(source)
	}
	if l.Vault == nil {
		return nil, fmt.Errorf("cookie source %q needs a vault", source)
	}

	data, err := l.Vault.Get(name)
	if errors.Is(err, ErrNotStored) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies from vault: %w", err)
	}
	return Parse(data, source)
}
