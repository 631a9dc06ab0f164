// Package logger provides the structured logging interface used across postmedia.
//
// It wraps zerolog behind a small Logger interface so resolution strategies,
// the fetch client and the HTTP service can log with fields without depending
// on zerolog directly. Tests use NewTestLogger to capture and assert messages.
//
//	log := logger.GetLogger().WithField("strategy", "embed")
//	log.InfoWithFields("strategy resolved media", map[string]interface{}{
//	    "url":   rawURL,
//	    "count": 3,
//	})
package logger
