package cookies

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	twerrors "tweetwatch/pkg/errors"
)

const sampleExport = `[
  {"Domain": ".x.com", "ExpirationDate": 1767225600.5, "HttpOnly": true, "Name": "auth_token",
   "Path": "/", "SameSite": "no_restriction", "Secure": true, "Value": "abc"},
  {"domain": ".x.com", "httpOnly": false, "name": "lang", "path": "/", "sameSite": "Lax",
   "secure": false, "value": "en"},
  {"Domain": "x.com", "Name": "ct0", "Path": "/", "SameSite": "unspecified", "Value": "z"}
]`

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in   string
		want SameSite
	}{
		{"strict", SameSiteStrict},
		{"Strict", SameSiteStrict},
		{"LAX", SameSiteLax},
		{"none", SameSiteNone},
		{"no_restriction", SameSiteNone},
		{"unspecified", SameSiteUnset},
		{"", SameSiteUnset},
	}

	for _, tt := range tests {
		if got := ParseSameSite(tt.in); got != tt.want {
			t.Errorf("ParseSameSite(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	records, err := Parse([]byte(sampleExport), "test")
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "auth_token", first.Name)
	assert.Equal(t, ".x.com", first.Domain)
	assert.True(t, first.HTTPOnly)
	assert.True(t, first.Secure)
	assert.Equal(t, SameSiteNone, first.SameSite)
	require.NotNil(t, first.Expires)
	assert.InDelta(t, 1767225600.5, *first.Expires, 0.001)

	assert.Equal(t, "en", records[1].Value)
	assert.Equal(t, SameSiteLax, records[1].SameSite)
	assert.Nil(t, records[1].Expires)

	assert.Equal(t, SameSiteUnset, records[2].SameSite)
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"{not json", "null", `{"Name":"x"}`} {
		_, err := Parse([]byte(in), "cookies.json")
		require.Error(t, err, "input %q", in)
		assert.ErrorIs(t, err, twerrors.ErrCookieParse)
	}
}

func TestLoadMissingFile(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.NoError(t, err)
	assert.Empty(t, records)

	records, err = Load("")
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0600))

	records, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

type fakeVault map[string][]byte

func (v fakeVault) Get(name string) ([]byte, error) {
	data, ok := v[name]
	if !ok {
		return nil, ErrNotStored
	}
	return data, nil
}

func TestLoaderVaultSource(t *testing.T) {
	l := &Loader{Vault: fakeVault{"main": []byte(sampleExport)}}

	records, err := l.Load("vault:main")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = l.Load("vault:other")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoaderVaultRequired(t *testing.T) {
	_, err := (&Loader{}).Load("vault:main")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, twerrors.ErrCookieParse))
}
