package bluesky

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	keyUsername = "username"
	keyPassword = "password"
	keyPDS      = "pds"

	// DefaultPDSURL is used when neither the preference nor the config names a PDS.
	DefaultPDSURL = "https://bsky.social"

	MaxChars  = 300
	MaxImages = 4

	requestTimeout = 30 * time.Second
)

// Config allows the caller to supply defaults for every Bluesky adapter.
type Config struct {
	PDSURL     string
	HTTPClient *http.Client
}

// Adapter posts to Bluesky through the user's PDS.
type Adapter struct {
	multipost.Base
	cfg Config
}

// Factory registers Bluesky adapters with cfg.
func Factory(cfg Config) multipost.Factory {
	return func(store *prefs.Store) multipost.Adapter {
		return New(store, cfg)
	}
}

// New constructs a Bluesky adapter owning store.
func New(store *prefs.Store, cfg Config) *Adapter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	return &Adapter{
		Base: multipost.Base{
			Service: multipost.Bluesky,
			Store:   store,
			Limits:  multipost.Limits{MaxChars: MaxChars, MaxImages: MaxImages},
		},
		cfg: cfg,
	}
}

type credentials struct {
	Username string
	Password string
	PDSURL   string
}

func loadCredentials(pref prefs.Preference, defaultPDS string) (credentials, error) {
	creds := credentials{
		Username: strings.TrimPrefix(pref.Get(keyUsername), "@"),
		Password: pref.Get(keyPassword),
		PDSURL:   pref.Get(keyPDS),
	}
	if creds.PDSURL == "" {
		creds.PDSURL = strings.TrimSpace(defaultPDS)
	}
	if creds.PDSURL == "" {
		creds.PDSURL = DefaultPDSURL
	}

	var missing []string
	if creds.Username == "" {
		missing = append(missing, keyUsername)
	}
	if creds.Password == "" {
		missing = append(missing, keyPassword)
	}
	if len(missing) > 0 {
		return credentials{}, multipost.MissingCredentialError{Service: multipost.Bluesky, Keys: missing}
	}
	return creds, nil
}

// Post logs in, uploads attachments and creates an app.bsky.feed.post record.
// It returns an empty URL without error when the created record URI does not
// have the expected shape.
func (a *Adapter) Post(ctx context.Context, post *multipost.Post, pref prefs.Preference) (string, error) {
	creds, err := loadCredentials(pref, a.cfg.PDSURL)
	if err != nil {
		return "", err
	}

	client, err := a.login(ctx, creds)
	if err != nil {
		return "", err
	}

	facets := DetectFacets(ctx, post.Text, func(ctx context.Context, handle string) (string, error) {
		out, err := atproto.IdentityResolveHandle(ctx, client, handle)
		if err != nil {
			return "", err
		}
		return out.Did, nil
	})

	record := &bsky.FeedPost{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Text:      post.Text,
		Facets:    facets,
	}

	embed, err := buildEmbed(post, func(img multipost.PostImage) (*util.LexBlob, error) {
		return uploadBlob(ctx, client, img)
	})
	if err != nil {
		return "", err
	}
	record.Embed = embed

	logutil.Debugf("creating bluesky record: facets=%d embed=%s", len(facets), embedKind(embed))
	out, err := atproto.RepoCreateRecord(ctx, client, &atproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       client.Auth.Did,
		Record: &util.LexiconTypeDecoder{
			Val: record,
		},
	})
	if err != nil {
		return "", multipost.SubmissionError{Service: multipost.Bluesky, Err: err}
	}

	handle := client.Auth.Handle
	if handle == "" {
		handle = creds.Username
	}
	link, ok := AppURL(out.Uri, handle)
	if !ok {
		logutil.Warnf("bluesky: cannot derive app url from %q", out.Uri)
		return "", nil
	}
	return link, nil
}

func (a *Adapter) login(ctx context.Context, creds credentials) (*xrpc.Client, error) {
	userAgent := "multipost/1"
	client := &xrpc.Client{
		Client:    a.cfg.HTTPClient,
		Host:      strings.TrimRight(creds.PDSURL, "/"),
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, client, &atproto.ServerCreateSession_Input{
		Identifier: creds.Username,
		Password:   creds.Password,
	})
	if err != nil {
		return nil, multipost.AuthenticationError{Service: multipost.Bluesky, Err: err}
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}
	return client, nil
}

type uploader func(multipost.PostImage) (*util.LexBlob, error)

// buildEmbed picks exactly one embed kind: a link card wins over images, and
// images are only uploaded when there is no link card.
func buildEmbed(post *multipost.Post, upload uploader) (*bsky.FeedPost_Embed, error) {
	switch {
	case post.LinkCard != nil:
		card := post.LinkCard
		external := &bsky.EmbedExternal_External{
			Uri:         card.URL,
			Title:       card.Title,
			Description: card.Description,
		}
		if card.Thumbnail != nil && len(card.Thumbnail.Binary) > 0 {
			blob, err := upload(*card.Thumbnail)
			if err != nil {
				return nil, err
			}
			external.Thumb = blob
		}
		return &bsky.FeedPost_Embed{
			EmbedExternal: &bsky.EmbedExternal{External: external},
		}, nil

	case len(post.Images) > 0:
		images := make([]*bsky.EmbedImages_Image, 0, len(post.Images))
		for _, img := range post.Images {
			blob, err := upload(img)
			if err != nil {
				return nil, err
			}
			entry := &bsky.EmbedImages_Image{Alt: "", Image: blob}
			if img.Width > 0 && img.Height > 0 {
				entry.AspectRatio = &bsky.EmbedDefs_AspectRatio{
					Width:  int64(img.Width),
					Height: int64(img.Height),
				}
			}
			images = append(images, entry)
		}
		return &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{Images: images},
		}, nil
	}
	return nil, nil
}

func uploadBlob(ctx context.Context, client *xrpc.Client, img multipost.PostImage) (*util.LexBlob, error) {
	encoding := img.MimeType
	if encoding == "" {
		encoding = "application/octet-stream"
	}
	// RepoUploadBlob always sends */*; the PDS records the declared encoding as the blob mime type.
	var resp atproto.RepoUploadBlob_Output
	err := client.LexDo(ctx, util.Procedure, encoding, "com.atproto.repo.uploadBlob", nil, bytes.NewReader(img.Binary), &resp)
	if err != nil {
		return nil, multipost.UploadError{Service: multipost.Bluesky, Err: err}
	}
	if resp.Blob == nil {
		return nil, multipost.UploadError{Service: multipost.Bluesky, Err: fmt.Errorf("empty response")}
	}
	want, err := blobCID(img.Binary)
	if err != nil {
		return nil, multipost.UploadError{Service: multipost.Bluesky, Err: err}
	}
	if got := cid.Cid(resp.Blob.Ref); !got.Equals(want) {
		return nil, multipost.UploadError{Service: multipost.Bluesky, Err: fmt.Errorf("blob cid mismatch: got %s, want %s", got, want)}
	}
	logutil.Debugf("bluesky blob uploaded: cid=%s mime=%s size=%d", want, resp.Blob.MimeType, resp.Blob.Size)
	return resp.Blob, nil
}

// blobCID is the CID a PDS assigns to uploaded bytes: CIDv1, raw codec, sha2-256.
func blobCID(data []byte) (cid.Cid, error) {
	return cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}.Sum(data)
}

func embedKind(e *bsky.FeedPost_Embed) string {
	switch {
	case e == nil:
		return "none"
	case e.EmbedExternal != nil:
		return "external"
	case e.EmbedImages != nil:
		return "images"
	}
	return "other"
}
