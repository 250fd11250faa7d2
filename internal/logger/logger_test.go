package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", false, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "v", entry["k"])
	require.Contains(t, entry, "time")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("loud", false, &buf)
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = New("", false, &buf)
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", true, &buf)
	log.Debug().Msg("hello")

	out := buf.String()
	require.Contains(t, out, "hello")
	require.False(t, strings.HasPrefix(out, "{"))
}
