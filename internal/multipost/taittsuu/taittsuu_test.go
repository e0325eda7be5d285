package taittsuu_test

import (
	"context"
	"testing"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/multipost/taittsuu"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaittsuu(t *testing.T) {
	store := prefs.NewStores(prefs.NewMemory(nil)).Get(string(multipost.Taittsuu))
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	a := taittsuu.Factory()(store)
	assert.Equal(t, multipost.Taittsuu, a.Name())
	assert.Equal(t, multipost.StatusValid, a.Status(&multipost.Draft{Text: "hi"}).Kind)
	assert.Equal(t, multipost.StatusInvalid, a.Status(&multipost.Draft{}).Kind)

	_, err = a.Post(context.Background(), &multipost.Post{Text: "hi"}, prefs.Preference{})
	assert.ErrorIs(t, err, multipost.ErrUnimplemented)
}
