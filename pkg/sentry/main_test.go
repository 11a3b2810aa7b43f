package sentry

import (
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"
)

func captureEvents(t *testing.T) *[]*sentry.Event {
	var events []*sentry.Event
	err := initWith(sentry.ClientOptions{
		Dsn:        "https://public@127.0.0.1/1",
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { inited = false })
	return &events
}

func TestSend(t *testing.T) {
	events := captureEvents(t)

	Send("wallet dashboard is incomplete", SentryInfoData{"wallet": "team.test"}, LevelWarning)

	require.Len(t, *events, 1)
	event := (*events)[0]
	require.Equal(t, "wallet dashboard is incomplete", event.Message)
	require.Equal(t, sentry.LevelWarning, event.Level)
	require.Equal(t, "team.test", event.Extra["wallet"])
}

func TestCaptureError(t *testing.T) {
	events := captureEvents(t)

	CaptureError(errors.New("node is down"), SentryInfoData{"args": []string{"info"}})
	CaptureError(nil, nil)

	require.Len(t, *events, 1)
	require.Equal(t, sentry.LevelError, (*events)[0].Level)
}

func TestDisabled(t *testing.T) {
	require.NoError(t, Init("", "testnet"))
	require.False(t, inited)
	Send("ignored", nil, LevelError)
	Flush()
}
