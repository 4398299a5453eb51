package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Navigation("https://x.com/alice", fmt.Errorf("net::ERR_NAME_NOT_RESOLVED")).ForAccount("alice")

	assert.Equal(t,
		"navigate https://x.com/alice: navigation (account alice): net::ERR_NAME_NOT_RESOLVED",
		err.Error())
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"launch", LaunchFailure(fmt.Errorf("no chromium")), ErrLaunch, true},
		{"wrapped timeout", fmt.Errorf("cycle: %w", NavigationTimeout("u", context.DeadlineExceeded)), ErrNavigationTimeout, true},
		{"type mismatch", Extraction("structured", fmt.Errorf("bad json")), ErrCookieParse, false},
		{"plain error", fmt.Errorf("boom"), ErrExtraction, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := NavigationTimeout("u", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{LaunchFailure(nil), true},
		{SessionClosed("fetch"), true},
		{CookieParse("cookies.json", fmt.Errorf("unexpected EOF")), true},
		{NavigationTimeout("u", nil), false},
		{Extraction("heuristic", nil), false},
		{NotificationSink("toast", nil), false},
		{fmt.Errorf("unclassified"), false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeSessionClosed, TypeOf(fmt.Errorf("x: %w", SessionClosed("open"))))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}
