package x

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"
)

const (
	keyAPIKey       = "api_key"
	keyAPISecret    = "api_secret"
	keyAccessToken  = "access_token"
	keyAccessSecret = "access_secret"

	MaxChars  = 280
	MaxImages = 4
)

var httpTimeout = 30 * time.Second

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Adapter posts through the X API v2. It is distinct from the Twitter deep-link
// flow, which never calls an API.
type Adapter struct {
	multipost.Base
}

// Factory registers X adapters.
func Factory() multipost.Factory {
	return func(store *prefs.Store) multipost.Adapter {
		return New(store)
	}
}

// New constructs an X adapter owning store.
func New(store *prefs.Store) *Adapter {
	return &Adapter{
		Base: multipost.Base{
			Service: multipost.X,
			Store:   store,
			Limits:  multipost.Limits{MaxChars: MaxChars, MaxImages: MaxImages},
		},
	}
}

// Post uploads media and creates a tweet. Link cards are unfurled by X from
// the URL, which is appended to the text when missing.
func (a *Adapter) Post(ctx context.Context, post *multipost.Post, pref prefs.Preference) (string, error) {
	cfg, err := loadConfig(pref)
	if err != nil {
		return "", err
	}

	client, err := gotwi.NewClient(&gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		Debug:                os.Getenv("MULTIPOST_X_DEBUG") == "1" || logutil.Verbose(),
	})
	if err != nil {
		return "", multipost.AuthenticationError{Service: multipost.X, Err: err}
	}
	if !client.IsReady() {
		return "", multipost.AuthenticationError{Service: multipost.X, Err: fmt.Errorf("client not ready")}
	}

	text := post.Text
	var mediaIDs []string
	if card := post.LinkCard; card != nil {
		if !strings.Contains(text, card.URL) {
			text = strings.TrimSpace(text + "\n\n" + card.URL)
		}
	} else {
		for i, img := range post.Images {
			logutil.Debugf("uploading media: index=%d mime=%s", i, img.MimeType)
			mediaID, err := uploadMedia(ctx, client, img)
			if err != nil {
				return "", multipost.UploadError{Service: multipost.X, Err: err}
			}
			mediaIDs = append(mediaIDs, mediaID)
		}
	}

	input := &managetweettypes.CreateInput{
		Text: gotwi.String(text),
	}
	if len(mediaIDs) > 0 {
		input.Media = &managetweettypes.CreateInputMedia{MediaIDs: mediaIDs}
	}

	logutil.Debugf("posting tweet: media_count=%d", len(mediaIDs))
	out, err := managetweet.Create(ctx, client, input)
	if err != nil {
		return "", multipost.SubmissionError{Service: multipost.X, Err: fromResponse(err)}
	}
	id := gotwi.StringValue(out.Data.ID)
	if id == "" {
		return "", nil
	}
	return StatusURL(id), nil
}

// StatusURL is the public link of a tweet id.
func StatusURL(id string) string {
	return "https://x.com/i/web/status/" + id
}

func uploadMedia(ctx context.Context, client *gotwi.Client, img multipost.PostImage) (string, error) {
	mediaType, category, err := resolveMediaType(img.MimeType)
	if err != nil {
		return "", err
	}

	initRes, err := upload.Initialize(ctx, client, &uploadtypes.InitializeInput{
		MediaType:     mediaType,
		TotalBytes:    len(img.Binary),
		MediaCategory: category,
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", fromResponse(err))
	}
	if err := fromPartials(initRes.Errors); err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	mediaID := initRes.Data.MediaID

	appendIn := &uploadtypes.AppendInput{
		MediaID:      mediaID,
		Media:        bytes.NewReader(img.Binary),
		SegmentIndex: 0,
	}
	appendIn.GenerateBoundary()

	appendRes, err := upload.Append(ctx, client, appendIn)
	if err != nil {
		return "", fmt.Errorf("append upload: %w", fromResponse(err))
	}
	if err := fromPartials(appendRes.Errors); err != nil {
		return "", fmt.Errorf("append upload: %w", err)
	}

	finalizeRes, err := upload.Finalize(ctx, client, &uploadtypes.FinalizeInput{MediaID: mediaID})
	if err != nil {
		return "", fmt.Errorf("finalize upload: %w", fromResponse(err))
	}
	if err := fromPartials(finalizeRes.Errors); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	state := finalizeRes.Data.ProcessingInfo.State
	logutil.Debugf("finalize state=%s media_id=%s", state, mediaID)
	switch state {
	case "", resources.ProcessingInfoStateSucceeded:
	case resources.ProcessingInfoStateInProgress, resources.ProcessingInfoStatePending:
		timer := time.NewTimer(time.Duration(finalizeRes.Data.ProcessingInfo.CheckAfterSecs) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	default:
		return "", fmt.Errorf("media processing failed: state=%s", state)
	}

	return mediaID, nil
}

func loadConfig(pref prefs.Preference) (Config, error) {
	cfg := Config{
		APIKey:       pref.Get(keyAPIKey),
		APISecret:    pref.Get(keyAPISecret),
		AccessToken:  pref.Get(keyAccessToken),
		AccessSecret: pref.Get(keyAccessSecret),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, keyAPIKey)
	}
	if cfg.APISecret == "" {
		missing = append(missing, keyAPISecret)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, keyAccessToken)
	}
	if cfg.AccessSecret == "" {
		missing = append(missing, keyAccessSecret)
	}
	if len(missing) > 0 {
		return Config{}, multipost.MissingCredentialError{Service: multipost.X, Keys: missing}
	}
	return cfg, nil
}

func resolveMediaType(mimeType string) (uploadtypes.MediaType, uploadtypes.MediaCategory, error) {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage, nil
	case "image/png":
		return uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage, nil
	case "image/gif":
		return uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF, nil
	case "image/webp":
		return uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage, nil
	}
	return "", "", multipost.ValidationError{Service: multipost.X, Reason: fmt.Sprintf("unsupported image type %q", mimeType)}
}
