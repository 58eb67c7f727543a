package testutil

import (
	"io"
	"testing"

	"github.com/impresso/impresso-essentials-go/internal/utils"
	"github.com/rs/zerolog"
)

// NewTestLogger creates a test logger that discards its output
func NewTestLogger(t *testing.T) *utils.Logger {
	t.Helper()

	zlogger := zerolog.New(io.Discard).With().
		Timestamp().
		Str("test", t.Name()).
		Logger()

	return &utils.Logger{Logger: zlogger}
}
