package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, FormatJSON, false)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("stake applied", "amount", 500)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stake applied", line["msg"])
	assert.Equal(t, float64(500), line["amount"])
}

func TestNew_TextVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, FormatText, true)
	require.NoError(t, err)

	log.Debug("transfer", "source", "abc", "memo", "")
	out := buf.String()
	assert.Contains(t, out, "transfer")
	assert.Contains(t, out, "abc")
	assert.NotContains(t, out, "memo")
}

func TestNew_UnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := New(&bytes.Buffer{}, "yaml", false)
	require.Error(t, err)
}

func TestFormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_456_789, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-03-01T11:30:45.123Z", formatRFC3339Millis(ts))
}
