package logger

import (
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/fruitslash/scorekeeper/logger"
)

/*
New returns logger for test t on debug level.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

/*
NewLvl returns logger for test t on level "level".

Output is rendered by zerolog console writer into t.Log so it is shown only
for failing tests (or when running with -v). Colors are used unless the
SK_TEST_LOG_NO_COLORS environment variable is set to "true".
*/
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	noColor, _ := strconv.ParseBool(os.Getenv("SK_TEST_LOG_NO_COLORS"))
	cfg := &logger.LogConfiguration{Format: logger.FormatConsole, Level: level.String(), NoColor: noColor, TimeFormat: "15:04:05.0000"}
	h, err := cfg.Handler(testLogWriter{t})
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return slog.New(h)
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
