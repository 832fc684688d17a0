package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContextFieldsReachEngineLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	base := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	ctx := base.WithContext(context.Background())
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithUserID(ctx, "user-7")

	zerolog.Ctx(ctx).Info().Msg("order.saved")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"user_id":"user-7"`)
	assert.Contains(t, out, `"service":"test"`)
	assert.Contains(t, out, `"message":"order.saved"`)
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := New(Options{ServiceName: "test", Output: buf})

	ctx := WithFields(base.WithContext(context.Background()), map[string]any{"order_id": "o-1"})
	FromContext(ctx).Info().Msg("x")

	assert.Contains(t, buf.String(), `"order_id":"o-1"`)
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	base := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})

	base.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	base.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}

func TestFromContextWithoutLoggerIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		FromContext(context.Background()).Info().Msg("dropped")
	})
}
