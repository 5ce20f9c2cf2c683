package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"ann@a.io, bob@b.io", "an***@a.io,bo***@b.io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in), tt.in)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestLogRedactsEmailFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	UseZap(zap.New(core))
	SetRedactPII(true)

	Info("sent", "to_email", "jane.smith@acme.com", "note", "cc mark.jones@acme.com", "count", 3)
	Named("inbox").Warn("poll failed", "error", errors.New("login refused for ops@acme.com"))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "ja***@acme.com", fields["to_email"])
	assert.Equal(t, "cc ma***@acme.com", fields["note"])
	assert.EqualValues(t, 3, fields["count"])

	fields = entries[1].ContextMap()
	assert.Equal(t, "inbox", fields["component"])
	assert.Equal(t, "login refused for op***@acme.com", fields["error"])
}
