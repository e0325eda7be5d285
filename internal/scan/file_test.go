package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFollowsFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("text: one\n"), 0o600))

	drafts := make(chan *multipost.Draft, 10)
	scanner := scan.NewScanner(scan.FileSource{Path: path}, 10*time.Millisecond, func(d *multipost.Draft) { drafts <- d })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scan.Watch(ctx, path, scanner) }()

	waitFor := func(text string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case d := <-drafts:
				if d.Text == text {
					return
				}
			case <-deadline:
				t.Fatalf("draft %q never observed", text)
			}
		}
	}

	waitFor("one")
	require.NoError(t, os.WriteFile(path, []byte("text: two\n"), 0o600))
	waitFor("two")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
