package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("WARN", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", "json")
	require.Error(t, err)
}

func TestRoom(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Room(zap.New(core), "ABC123").Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ABC123", entries[0].ContextMap()["room"])
}
