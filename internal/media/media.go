// Package media loads image attachments referenced by a draft.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes caps a single downloaded attachment.
const DefaultMaxBytes = 20 << 20

// Image is a downloaded attachment.
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Fetcher downloads http(s) and data: URLs.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher returns a fetcher using client, or a pooled client when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Fetcher{client: client, maxBytes: DefaultMaxBytes}
}

// Fetch loads the resource at raw.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		data, declared, err := DecodeDataURL(raw)
		if err != nil {
			return Image{}, err
		}
		return Inspect(data, declared), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Image{}, fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Image{}, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Image{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("download %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	if int64(len(data)) > f.maxBytes {
		return Image{}, fmt.Errorf("download %s: larger than %d bytes", u.Redacted(), f.maxBytes)
	}

	declared, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return Inspect(data, declared), nil
}

// DecodeDataURL decodes an RFC 2397 data URL into its payload and media type.
func DecodeDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, "", errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data url")
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta = m
		isBase64 = true
	}
	mediaType := "text/plain"
	if meta != "" {
		if mt, _, err := mime.ParseMediaType(meta); err == nil {
			mediaType = mt
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
			if err != nil {
				return nil, "", fmt.Errorf("decode data url: %w", err)
			}
		}
		return data, mediaType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url: %w", err)
	}
	return []byte(text), mediaType, nil
}

// Inspect settles the mime type (sniffed bytes win over a generic declared type)
// and decodes image dimensions when the format is known.
func Inspect(data []byte, declared string) Image {
	img := Image{Data: data, MimeType: declared}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
		img.MimeType = "image/" + format
		return img
	}

	if img.MimeType == "" || img.MimeType == "application/octet-stream" {
		img.MimeType = http.DetectContentType(data)
		if mt, _, err := mime.ParseMediaType(img.MimeType); err == nil {
			img.MimeType = mt
		}
	}
	return img
}
