package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogCycle logs the outcome of one poll cycle
func LogCycle(cycleID string, targets, newPosts int, duration time.Duration, err error) {
	l := GetLogger().WithFields(map[string]interface{}{
		"cycle_id":  cycleID,
		"targets":   targets,
		"new_posts": newPosts,
		"duration":  duration,
	})

	if err != nil {
		l.WithError(err).Error("Poll cycle aborted")
		return
	}
	if newPosts > 0 {
		l.Info("Poll cycle completed")
	} else {
		l.Debug("Poll cycle completed")
	}
}

// LogNewPost logs a post that is about to be dispatched
func LogNewPost(handle, postID, mode string) {
	GetLogger().WithFields(map[string]interface{}{
		"account": handle,
		"post_id": postID,
		"mode":    mode,
	}).Info("New post detected")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
