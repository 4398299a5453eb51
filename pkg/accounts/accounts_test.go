package accounts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"View", View},
		{"ViewOnly", View},
		{"sound", Sound},
		{"SoundOnly", Sound},
		{"ViewAndSound", ViewAndSound},
		{"View and Sound", ViewAndSound},
		{"Disabled", Disabled},
		{"", Disabled},
		{"loud", Disabled},
	}

	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModeHas(t *testing.T) {
	assert.True(t, ViewAndSound.Has(View))
	assert.True(t, ViewAndSound.Has(Sound))
	assert.False(t, View.Has(Sound))
	assert.False(t, Disabled.Has(View))
	assert.False(t, View.Has(Disabled))
}

func TestParse(t *testing.T) {
	got := Parse(" @Alice:View , bob:ViewAndSound,,carol, dave:Nope,:View,alice:Sound")

	want := []Account{
		{Handle: "Alice", Mode: View},
		{Handle: "bob", Mode: ViewAndSound},
		{Handle: "carol", Mode: Disabled},
		{Handle: "dave", Mode: Disabled},
	}
	assert.Equal(t, want, got)
}

func TestParseEmpty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse(" , ,"))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"alice:View,bob:Sound",
		"@alice:ViewOnly, BOB:view and sound ,carol",
		"x:Disabled",
		"",
		"a:View,A:Sound",
	}

	for _, in := range inputs {
		first := Parse(in)
		again := Parse(Serialize(first))
		assert.Equal(t, first, again, "round trip of %q", in)
	}
}

func TestSerialize(t *testing.T) {
	s := Serialize([]Account{{"alice", View}, {"bob", ViewAndSound}, {"carol", Disabled}})
	assert.Equal(t, "alice:View,bob:ViewAndSound,carol:Disabled", s)
}

func TestEnabled(t *testing.T) {
	list := []Account{{"a", Disabled}, {"b", Sound}, {"c", View}}
	assert.Equal(t, []Account{{"b", Sound}, {"c", View}}, Enabled(list))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "alice", Key("@Alice"))
	assert.Equal(t, "alice", Account{Handle: "ALICE"}.Key())
}

type recordingPersister struct {
	saved []string
	err   error
}

func (p *recordingPersister) SaveAccounts(s string) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, s)
	return nil
}

func TestRegistryMutationsPersist(t *testing.T) {
	p := &recordingPersister{}
	r := NewRegistry(Parse("alice:View"), p)

	require.NoError(t, r.Add("@bob", Sound))
	require.NoError(t, r.SetMode("ALICE", ViewAndSound))
	require.NoError(t, r.Remove("bob"))

	assert.Equal(t, []string{
		"alice:View,bob:Sound",
		"alice:ViewAndSound,bob:Sound",
		"alice:ViewAndSound",
	}, p.saved)
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry(Parse("alice:View"), nil)

	assert.ErrorIs(t, r.Add("Alice", Sound), ErrDuplicate)
	assert.ErrorIs(t, r.Add(" @ ", Sound), ErrEmptyHandle)
	assert.ErrorIs(t, r.Remove("zed"), ErrNotFound)
	assert.ErrorIs(t, r.SetMode("zed", View), ErrNotFound)
}

func TestRegistryRollsBackOnPersistFailure(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	r := NewRegistry(Parse("alice:View"), p)

	err := r.Add("bob", View)
	require.Error(t, err)

	_, found := r.Find("bob")
	assert.False(t, found)
	assert.Len(t, r.Snapshot(), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry(Parse("alice:View"), nil)
	snap := r.Snapshot()
	snap[0].Mode = Disabled

	acc, ok := r.Find("alice")
	require.True(t, ok)
	assert.Equal(t, View, acc.Mode)
}

func TestReplaceDedups(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Replace([]Account{{"a", View}, {"@A", Sound}, {"b", Sound}})
	assert.Equal(t, "a:View,b:Sound", r.Serialize())
}
