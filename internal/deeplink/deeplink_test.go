package deeplink_test

import (
	"net/url"
	"testing"

	"github.com/blacktop/multipost/internal/deeplink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeURL(t *testing.T) {
	raw := deeplink.ComposeURL("Hello & welcome", "https://example.com/a?b=c")
	assert.Equal(t, "https://twitter.com/intent/tweet?text=Hello+%26+welcome&url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc", raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome", u.Query().Get("text"))
	assert.Equal(t, "https://example.com/a?b=c", u.Query().Get("url"))
}

func TestCompose(t *testing.T) {
	p := deeplink.Compose("t", "")
	assert.Equal(t, "popup", p.Type)
	assert.Equal(t, 600, p.Width)
	assert.Equal(t, 400, p.Height)
	assert.Contains(t, p.URL, deeplink.IntentEndpoint)
}
