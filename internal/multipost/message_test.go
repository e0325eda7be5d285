package multipost_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSON(t *testing.T) {
	tests := []struct {
		name     string
		msg      multipost.Message
		expected string
	}{
		{
			name:     "success",
			msg:      multipost.SuccessMessage(multipost.Bluesky, "https://bsky.app/profile/a/post/b"),
			expected: `{"type":"Success","service":"Bluesky","url":"https://bsky.app/profile/a/post/b"}`,
		},
		{
			name:     "success without url",
			msg:      multipost.SuccessMessage(multipost.Bluesky, ""),
			expected: `{"type":"Success","service":"Bluesky","url":null}`,
		},
		{
			name:     "error",
			msg:      multipost.ErrorMessage(multipost.Taittsuu, errors.New("unimplemented")),
			expected: `{"type":"Error","service":"Taittsuu","message":"unimplemented"}`,
		},
		{
			name:     "tweet",
			msg:      multipost.TweetMessage(),
			expected: `{"type":"Tweet"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(b))

			var back multipost.Message
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.msg, back)
		})
	}
}

func TestPostMessageCarriesSerializedDraft(t *testing.T) {
	draft := &multipost.Draft{Text: "hello", ImageURLs: []string{"https://example.com/a.png"}, LinkDomain: "example.com"}
	msg, err := multipost.PostMessage(draft, []multipost.ServiceName{multipost.Bluesky, multipost.Twitter})
	require.NoError(t, err)

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var back multipost.Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, multipost.MessagePost, back.Type)
	assert.Equal(t, []multipost.ServiceName{multipost.Bluesky, multipost.Twitter}, back.Services)

	parsed, err := multipost.ParseDraft(back.Draft)
	require.NoError(t, err)
	assert.Equal(t, draft, parsed)
}

func TestMessageUnknownType(t *testing.T) {
	var m multipost.Message
	assert.Error(t, json.Unmarshal([]byte(`{"type":"Nope"}`), &m))
	_, err := json.Marshal(multipost.Message{Type: "Nope"})
	assert.Error(t, err)
}

func TestParseDraft(t *testing.T) {
	_, err := multipost.ParseDraft("  ")
	assert.Error(t, err)
	_, err = multipost.ParseDraft("{")
	assert.Error(t, err)

	d, err := multipost.ParseDraft(`{"text":"hi","imageURLs":[],"linkDomain":""}`)
	require.NoError(t, err)
	assert.True(t, d.HasContent())
}
