// Package logger provides structured logging for tweetwatch.
//
// It wraps zerolog behind the Logger interface so packages can accept a
// logger without depending on zerolog directly:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("account", "alice").Info("Fetching timeline")
//
// Tests use NewTestLogger to capture and inspect messages, or NewNopLogger
// to discard them.
package logger
