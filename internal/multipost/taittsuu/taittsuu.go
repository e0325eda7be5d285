// Package taittsuu reserves the Taittsuu service. Its status is computed like
// any other service, but posting fails until the service publishes an API.
package taittsuu

import (
	"context"
	"fmt"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
)

// Adapter is the placeholder for Taittsuu.
type Adapter struct {
	multipost.Base
}

// Factory registers Taittsuu adapters.
func Factory() multipost.Factory {
	return func(store *prefs.Store) multipost.Adapter {
		return &Adapter{Base: multipost.Base{Service: multipost.Taittsuu, Store: store}}
	}
}

// Post always fails with multipost.ErrUnimplemented.
func (a *Adapter) Post(context.Context, *multipost.Post, prefs.Preference) (string, error) {
	return "", fmt.Errorf("%s: %w", multipost.Taittsuu, multipost.ErrUnimplemented)
}
