package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ToLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
	}{
		{in: "debug", expected: slog.LevelDebug},
		{in: "info", expected: slog.LevelInfo},
		{in: "warn", expected: slog.LevelWarn},
		{in: "error", expected: slog.LevelError},
		{in: "", expected: slog.LevelInfo},
		{in: "verbose", expected: slog.LevelInfo},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, ToLevel(tc.in))
		})
	}
}
