package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetwatch/pkg/cookies"
)

const cookieJSON = `[{"Domain":".x.com","Name":"auth_token","Path":"/","Value":"abc","Secure":true,"HttpOnly":true,"SameSite":"lax"}]`

func staticPassphrase(p string) PassphraseFunc {
	return func() (string, error) { return p, nil }
}

func TestManagerFallsBackOnPutFailure(t *testing.T) {
	broken := NewMemoryStore()
	broken.PutErr = errors.New("secret too large")
	backup := NewMemoryStore()
	m := NewManagerWith(broken, backup)

	store, err := m.Put("main", []byte(cookieJSON))
	require.NoError(t, err)
	assert.Equal(t, "memory", store)

	data, err := m.Get("main")
	require.NoError(t, err)
	assert.Equal(t, cookieJSON, string(data))
}

func TestManagerGetMissing(t *testing.T) {
	m := NewManagerWith(NewMemoryStore(), NewEnvironmentStore())

	_, err := m.Get("nothing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cookies.ErrNotStored)
}

func TestManagerDelete(t *testing.T) {
	a, b := NewMemoryStore(), NewMemoryStore()
	require.NoError(t, a.Put("main", []byte("1")))
	require.NoError(t, b.Put("main", []byte("2")))
	m := NewManagerWith(a, b, NewEnvironmentStore())

	require.NoError(t, m.Delete("main"))
	_, err := m.Get("main")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.Delete("main"), ErrNotFound)
}

func TestInvalidNames(t *testing.T) {
	m := NewManagerWith(NewMemoryStore())
	for _, name := range []string{"", "a/b", "with space", "vault:x"} {
		_, err := m.Put(name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.enc")
	s := NewEncryptedFileStore(path, staticPassphrase("correct horse"))

	require.NoError(t, s.Put("main", []byte(cookieJSON)))
	require.NoError(t, s.Put("alt", []byte("[]")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "auth_token"), "file must not contain plaintext")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A fresh store with the same passphrase reads it back.
	again := NewEncryptedFileStore(path, staticPassphrase("correct horse"))
	data, err := again.Get("main")
	require.NoError(t, err)
	assert.Equal(t, cookieJSON, string(data))

	require.NoError(t, again.Delete("main"))
	_, err = again.Get("main")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, again.Delete("alt"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty vault file is removed")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.enc")
	require.NoError(t, NewEncryptedFileStore(path, staticPassphrase("one")).Put("main", []byte("[]")))

	_, err := NewEncryptedFileStore(path, staticPassphrase("two")).Get("main")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestEncryptedFileStoreAsksOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.enc")
	var asked int
	s := NewEncryptedFileStore(path, func() (string, error) {
		asked++
		return "pw", nil
	})

	_, err := s.Get("main")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, asked, "no prompt while the file does not exist")

	require.NoError(t, s.Put("main", []byte("[]")))
	_, err = s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("TWEETWATCH_COOKIES_WORK_PROFILE", cookieJSON)
	s := NewEnvironmentStore()

	data, err := s.Get("work-profile")
	require.NoError(t, err)
	assert.Equal(t, cookieJSON, string(data))

	_, err = s.Get("home")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Put("home", nil), ErrStoreUnavailable)
}

func TestEnvPassphrase(t *testing.T) {
	t.Setenv("TWEETWATCH_PASSPHRASE", "from-env")
	pass, err := EnvPassphrase(staticPassphrase("prompted"))()
	require.NoError(t, err)
	assert.Equal(t, "from-env", pass)

	t.Setenv("TWEETWATCH_PASSPHRASE", "")
	pass, err = EnvPassphrase(staticPassphrase("prompted"))()
	require.NoError(t, err)
	assert.Equal(t, "prompted", pass)

	_, err = EnvPassphrase(nil)()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestVaultFeedsCookieLoader(t *testing.T) {
	mem := NewMemoryStore()
	m := NewManagerWith(mem)
	_, err := m.Put("main", []byte(cookieJSON))
	require.NoError(t, err)

	loader := &cookies.Loader{Vault: m}
	records, err := loader.Load(cookies.VaultPrefix + "main")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "auth_token", records[0].Name)
	assert.Equal(t, cookies.SameSiteLax, records[0].SameSite)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
