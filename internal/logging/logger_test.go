package logging_test

import (
	"log/slog"
	"testing"

	"github.com/aretw0/formbot/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("verbose"))
}

func TestNewWithFormat(t *testing.T) {
	assert.IsType(t, &slog.JSONHandler{}, logging.NewWithFormat("json", slog.LevelInfo).Handler())
	assert.IsType(t, &slog.TextHandler{}, logging.NewWithFormat("text", slog.LevelInfo).Handler())
}
