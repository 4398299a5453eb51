package models

import "testing"

func TestHandleFromPermalink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/alice/status/123", "alice"},
		{"https://twitter.com/Bob_99/status/5/photo/1", "Bob_99"},
		{"/carol/status/7", "carol"},
		{"https://x.com/alice", ""},
		{"https://x.com", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := HandleFromPermalink(tt.in); got != tt.want {
			t.Errorf("HandleFromPermalink(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/alice/status/123", "123"},
		{"https://twitter.com/Bob_99/status/5/photo/1", "5"},
		{"/carol/status/7?s=20", "7"},
		{"https://x.com/alice/status/8#m", "8"},
		{"https://x.com/alice/status/", ""},
		{"https://x.com/alice", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StatusID(tt.in); got != tt.want {
			t.Errorf("StatusID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
