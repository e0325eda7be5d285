package mastodon

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	keyServer      = "server"
	keyAccessToken = "access_token"

	MaxChars  = 500
	MaxImages = 4

	requestTimeout = 30 * time.Second
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server      string
	AccessToken string
}

// Adapter posts statuses to a Mastodon server.
type Adapter struct {
	multipost.Base
}

// Factory registers Mastodon adapters.
func Factory() multipost.Factory {
	return func(store *prefs.Store) multipost.Adapter {
		return New(store)
	}
}

// New constructs a Mastodon adapter owning store.
func New(store *prefs.Store) *Adapter {
	return &Adapter{
		Base: multipost.Base{
			Service: multipost.Mastodon,
			Store:   store,
			Limits:  multipost.Limits{MaxChars: MaxChars, MaxImages: MaxImages},
		},
	}
}

// Post uploads any images and publishes a status. Link cards are rendered by
// Mastodon itself, so the card URL is appended to the text when missing.
func (a *Adapter) Post(ctx context.Context, post *multipost.Post, pref prefs.Preference) (string, error) {
	cfg, err := loadConfig(pref)
	if err != nil {
		return "", err
	}

	client := mastodonapi.NewClient(&mastodonapi.Config{
		Server:      cfg.Server,
		AccessToken: cfg.AccessToken,
	})
	client.Timeout = requestTimeout

	if _, err := client.GetAccountCurrentUser(ctx); err != nil {
		return "", multipost.AuthenticationError{Service: multipost.Mastodon, Err: err}
	}

	status := post.Text
	var mediaIDs []mastodonapi.ID
	if card := post.LinkCard; card != nil {
		if !strings.Contains(status, card.URL) {
			status = strings.TrimSpace(status + "\n\n" + card.URL)
		}
	} else {
		for _, img := range post.Images {
			attachment, err := client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
				File: bytes.NewReader(img.Binary),
			})
			if err != nil {
				return "", multipost.UploadError{Service: multipost.Mastodon, Err: err}
			}
			logutil.Debugf("mastodon media uploaded: id=%s", attachment.ID)
			mediaIDs = append(mediaIDs, attachment.ID)
		}
	}

	created, err := client.PostStatus(ctx, &mastodonapi.Toot{
		Status:   status,
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return "", multipost.SubmissionError{Service: multipost.Mastodon, Err: err}
	}
	return created.URL, nil
}

func loadConfig(pref prefs.Preference) (Config, error) {
	cfg := Config{
		Server:      strings.TrimRight(pref.Get(keyServer), "/"),
		AccessToken: pref.Get(keyAccessToken),
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, keyServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, keyAccessToken)
	}
	if len(missing) > 0 {
		return Config{}, multipost.MissingCredentialError{Service: multipost.Mastodon, Keys: missing}
	}
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		cfg.Server = "https://" + cfg.Server
	}
	return cfg, nil
}
