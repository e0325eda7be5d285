package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTargets(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []multipost.ServiceName
		wantErr bool
	}{
		{name: "keeps order", in: []string{"twitter", "Bluesky"}, want: []multipost.ServiceName{multipost.Twitter, multipost.Bluesky}},
		{name: "dedup", in: []string{"x", " X ", "mastodon"}, want: []multipost.ServiceName{multipost.X, multipost.Mastodon}},
		{name: "all", in: []string{"bluesky", "all"}, want: allTargets},
		{name: "unknown", in: []string{"myspace"}, wantErr: true},
		{name: "empty", in: []string{" "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeTargets(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMessage(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("ignored"))

	msg, err := resolveMessage(cmd, "", []string{"hello", "world"}, false)
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg)

	msg, err = resolveMessage(cmd, "  flagged  ", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "flagged", msg)

	_, err = resolveMessage(cmd, "flag", []string{"arg"}, false)
	assert.Error(t, err)

	_, err = resolveMessage(cmd, "", nil, false)
	assert.Error(t, err, "non-file stdin is not read")

	msg, err = resolveMessage(cmd, "", nil, true)
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestImageRef(t *testing.T) {
	for _, ref := range []string{"https://example.com/a.png", "data:image/png;base64,AAAA"} {
		got, err := imageRef(ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}

	path := filepath.Join(t.TempDir(), "a.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a"), 0o600))
	got, err := imageRef(path)
	require.NoError(t, err)
	assert.Equal(t, "data:image/gif;base64,R0lGODlh", got)

	_, err = imageRef(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorContains(t, err, "not found")
}

func TestDraftFlagsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("text: from file\ncard:\n  domain: example.com\n"), 0o600))

	f := draftFlags{draftPath: path}
	draft, err := f.build(&cobra.Command{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from file", draft.Text)
	assert.Equal(t, "example.com", draft.LinkDomain)

	f.message = "also text"
	_, err = f.build(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestPostDryRun(t *testing.T) {
	t.Setenv("MULTIPOST_DB", filepath.Join(t.TempDir(), "prefs.db"))
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("services:\n  Bluesky:\n    credentials:\n      username: alice\n"), 0o600))

	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--config", cfg, "post", "hello", "--target", "bluesky,taittsuu,twitter", "--dry-run"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "would post to Bluesky")
	assert.Contains(t, out.String(), "would post to Taittsuu")
	assert.Contains(t, out.String(), "would post to Twitter")
}
