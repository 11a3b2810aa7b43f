package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryInfoData map[string]interface{}

const flushTimeout = 2 * time.Second

const (
	LevelError   = sentry.LevelError
	LevelWarning = sentry.LevelWarning
)

var inited = false

// Init enables reporting to dsn. Without a dsn every call of this package is a no-op.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return initWith(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 1.0,
	})
}

func initWith(options sentry.ClientOptions) error {
	if err := sentry.Init(options); err != nil {
		return fmt.Errorf("failed to sentry init: %w", err)
	}
	inited = true
	return nil
}

// Send reports a message synchronously so it is queued before a short-lived command flushes.
func Send(title string, data SentryInfoData, logLevel sentry.Level) {
	if !inited {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(logLevel)
		scope.SetExtras(data)
	})
	hub.CaptureMessage(title)
}

// CaptureError reports err synchronously, the caller is usually about to exit.
func CaptureError(err error, data SentryInfoData) {
	if !inited || err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetExtras(data)
	})
	hub.CaptureException(err)
}

// Flush waits for buffered events to be delivered.
func Flush() {
	if !inited {
		return
	}
	sentry.Flush(flushTimeout)
}
