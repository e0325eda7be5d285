package logutil

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
		SetJSON(false)
	})
	return &buf
}

func TestVerbose(t *testing.T) {
	buf := capture(t)

	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	assert.True(t, Verbose())
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestJSONWith(t *testing.T) {
	buf := capture(t)
	SetJSON(true)

	With("service", "Bluesky").Info("posted", "url", "https://bsky.app/x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "posted", entry["msg"])
	assert.Equal(t, "Bluesky", entry["service"])
	assert.Equal(t, "https://bsky.app/x", entry["url"])
}
