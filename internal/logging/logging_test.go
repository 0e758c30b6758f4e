package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithWriter(&buf))
	l.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "key=value")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithDebug(true)).Debug("debug msg")
	assert.Contains(t, buf.String(), "debug msg")

	buf.Reset()
	New(WithWriter(&buf), WithDebug(false)).Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithJSON(true)).Info("structured", "count", 42)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "structured", parsed["msg"])
	assert.EqualValues(t, 42, parsed["count"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	New(WithWriter(&buf), WithPretty(true)).Info("pretty output", "scope", "alice")

	assert.Contains(t, buf.String(), "pretty output")
	assert.Contains(t, buf.String(), "alice")
}

func TestNew_MultipleWriters(t *testing.T) {
	var a, b bytes.Buffer
	New(WithWriters(&a, &b)).Warn("both")
	assert.Contains(t, a.String(), "both")
	assert.Contains(t, b.String(), "both")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("dropped")
	assert.False(t, l.Enabled(t.Context(), 12))
}
