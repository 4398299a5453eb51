package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetwatch/pkg/accounts"
	"tweetwatch/pkg/config"
	"tweetwatch/pkg/ui"
)

// withConfig points the commands at a fresh config file and captures output.
func withConfig(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.DefaultConfig().Save(path))

	prevFile, prevOut := configFile, ui.Out
	var buf bytes.Buffer
	configFile, ui.Out = path, &buf
	t.Cleanup(func() { configFile, ui.Out = prevFile, prevOut })
	return path, &buf
}

func TestParseModeArg(t *testing.T) {
	tests := []struct {
		in      string
		want    accounts.Mode
		wantErr bool
	}{
		{"View", accounts.View, false},
		{"sound", accounts.Sound, false},
		{"ViewAndSound", accounts.ViewAndSound, false},
		{"Disabled", accounts.Disabled, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := parseModeArg(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAccountsCommandsPersist(t *testing.T) {
	path, _ := withConfig(t)

	require.NoError(t, runAccountsAdd(accountsAddCmd, []string{"@alice"}))
	require.NoError(t, runAccountsAdd(accountsAddCmd, []string{"bob", "Sound"}))
	require.NoError(t, runAccountsMode(accountsModeCmd, []string{"ALICE", "ViewAndSound"}))
	require.NoError(t, runAccountsRemove(accountsRemoveCmd, []string{"bob"}))

	cfg := config.DefaultConfig()
	_, err := cfg.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice:ViewAndSound", cfg.Settings.TwitterAccounts)

	assert.ErrorIs(t, runAccountsRemove(accountsRemoveCmd, []string{"carol"}), accounts.ErrNotFound)
}

func TestConfigSetAndGet(t *testing.T) {
	_, buf := withConfig(t)

	require.NoError(t, runConfigSet(configSetCmd, []string{"UpdateTime", "45"}))
	buf.Reset()
	require.NoError(t, runConfigGet(configGetCmd, []string{"UpdateTime"}))
	assert.Equal(t, "45\n", buf.String())

	assert.Error(t, runConfigSet(configSetCmd, []string{"Volume", "300"}))
	assert.Error(t, runConfigSet(configSetCmd, []string{"Nope", "1"}))
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path, _ := withConfig(t)
	assert.Error(t, runConfigInit(configInitCmd, nil))

	require.NoError(t, os.Remove(path))
	require.NoError(t, runConfigInit(configInitCmd, nil))

	cfg := config.DefaultConfig()
	_, err := cfg.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nasa:View,golang:ViewAndSound", cfg.Settings.TwitterAccounts)
}

func TestCookiesCheckFile(t *testing.T) {
	_, buf := withConfig(t)
	file := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"Domain":".x.com","Name":"auth_token","Value":"0123456789abcdef","Path":"/","SameSite":"no_restriction"}]`), 0600))

	require.NoError(t, runCookiesCheck(cookiesCheckCmd, []string{file}))
	out := buf.String()
	assert.Contains(t, out, "auth_token")
	assert.Contains(t, out, "0123...cdef")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "None")
}

func TestExtractCommand(t *testing.T) {
	_, buf := withConfig(t)
	page := filepath.Join(t.TempDir(), "page.html")
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"timeline":{"entries":[
{"type":"tweet","entry_id":"tweet-9","content":{"tweet":{"full_text":"hello","permalink":"https://x.com/alice/status/9"}}}]}}}}</script></body></html>`
	require.NoError(t, os.WriteFile(page, []byte(html), 0600))

	require.NoError(t, runExtract(extractCmd, []string{page}))
	out := buf.String()
	assert.Contains(t, out, "structured")
	assert.Contains(t, out, `id: "9"`)
	assert.Contains(t, out, "author_handle: alice")
}
