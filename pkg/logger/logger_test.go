package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/browo-hrthis/fetchkit/pkg/logger"
)

type requestIDKey struct{}

func requestID(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	if !ok || id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("writes json at configured level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.Config{Output: &buf, Level: slog.LevelWarn})

		log.Info("dropped")
		log.Warn("kept", slog.Int("attempt", 2))

		recs := decode(t, &buf)
		require.Len(t, recs, 1)
		require.Equal(t, "kept", recs[0]["msg"])
		require.EqualValues(t, 2, recs[0]["attempt"])
	})

	t.Run("extractors read the context at log time", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.Config{Output: &buf}, requestID, nil)

		log.InfoContext(context.WithValue(context.Background(), requestIDKey{}, "req-1"), "with id")
		log.InfoContext(context.Background(), "without id")

		recs := decode(t, &buf)
		require.Len(t, recs, 2)
		require.Equal(t, "req-1", recs[0]["request_id"])
		require.NotContains(t, recs[1], "request_id")
	})

	t.Run("context attrs are inlined", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.Config{Output: &buf}).With(slog.String("component", "directory"))

		ctx := logger.WithAttrs(context.Background(), slog.String("employee_id", "7"))
		ctx = logger.WithAttrs(ctx, slog.String("op", "update"))
		log.InfoContext(ctx, "employee updated")

		recs := decode(t, &buf)
		require.Len(t, recs, 1)
		require.Equal(t, "7", recs[0]["employee_id"])
		require.Equal(t, "update", recs[0]["op"])
		require.Equal(t, "directory", recs[0]["component"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger.New(logger.Config{Output: &buf, Format: "text"}).Info("hello")
		require.Contains(t, buf.String(), "msg=hello")
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := logger.ParseLevel("loud")
	require.ErrorIs(t, err, logger.ErrInvalidLevel)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	log := logger.Discard()
	require.False(t, log.Enabled(context.Background(), slog.LevelError))
}
