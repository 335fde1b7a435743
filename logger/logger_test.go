package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestRedactFields(t *testing.T) {
	fields := redactFields([]zapcore.Field{
		{Key: "access_token", Type: zapcore.StringType, String: "sk-abc"},
		{Key: "x-forwarded-email", Type: zapcore.StringType, String: "a@b.com"},
		{Key: "Authorization", Type: zapcore.StringType, String: "Bearer xyz"},
	})

	assert.Equal(t, redactedValue, fields[0].String)
	assert.Equal(t, "a@b.com", fields[1].String)
	assert.Equal(t, redactedValue, fields[2].String)
}

func TestNewLevelFallback(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, newLevel("not-a-level"))
	assert.Equal(t, zapcore.DebugLevel, newLevel("debug"))
}
