package multipost

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceName identifies a posting destination.
type ServiceName string

const (
	Twitter  ServiceName = "Twitter"
	Bluesky  ServiceName = "Bluesky"
	Mastodon ServiceName = "Mastodon"
	X        ServiceName = "X"
	Taittsuu ServiceName = "Taittsuu"
)

// DeepLinkService is reached by opening a pre-filled compose window instead of an API call.
const DeepLinkService = Twitter

// Draft is a snapshot of the content currently typed into the composer.
type Draft struct {
	Text       string   `json:"text" yaml:"text"`
	ImageURLs  []string `json:"imageURLs" yaml:"images"`
	LinkDomain string   `json:"linkDomain" yaml:"link_domain"`
}

// HasContent reports whether the draft carries text or at least one image.
func (d *Draft) HasContent() bool {
	if d == nil {
		return false
	}
	return d.Text != "" || len(d.ImageURLs) > 0
}

// ParseDraft decodes the serialized draft carried by a Post message.
func ParseDraft(serialized string) (*Draft, error) {
	if strings.TrimSpace(serialized) == "" {
		return nil, fmt.Errorf("draft is empty")
	}
	var d Draft
	if err := json.Unmarshal([]byte(serialized), &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// Serialize encodes the draft the way Post messages carry it.
func (d *Draft) Serialize() (string, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// PostImage is a binary attachment ready for upload.
type PostImage struct {
	Binary   []byte
	MimeType string
	// Width and Height are zero when the format could not be decoded.
	Width  int
	Height int
}

// LinkCard describes an external link preview.
type LinkCard struct {
	URL         string
	Title       string
	Description string
	Thumbnail   *PostImage
}

// Post is the service-agnostic payload derived from a Draft once per submission.
type Post struct {
	Text     string
	Images   []PostImage
	LinkCard *LinkCard
}

// Clone returns a deep copy so that adapters never share mutable state.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	out := &Post{Text: p.Text}
	if len(p.Images) > 0 {
		out.Images = make([]PostImage, len(p.Images))
		for i, img := range p.Images {
			out.Images[i] = img.clone()
		}
	}
	if p.LinkCard != nil {
		card := *p.LinkCard
		if card.Thumbnail != nil {
			thumb := card.Thumbnail.clone()
			card.Thumbnail = &thumb
		}
		out.LinkCard = &card
	}
	return out
}

func (i PostImage) clone() PostImage {
	i.Binary = append([]byte(nil), i.Binary...)
	return i
}
