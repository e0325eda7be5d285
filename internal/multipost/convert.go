package multipost

import (
	"context"
	"fmt"

	"github.com/blacktop/multipost/internal/linkcard"
	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/media"
)

// ImageFetcher loads image bytes referenced by a draft.
type ImageFetcher interface {
	Fetch(ctx context.Context, raw string) (media.Image, error)
}

// CardFetcher loads link-card metadata for a page.
type CardFetcher interface {
	Fetch(ctx context.Context, pageURL string) (linkcard.Card, error)
}

// Converter turns a Draft into a Post.
type Converter struct {
	images ImageFetcher
	cards  CardFetcher
}

// NewConverter wires the fetchers used during conversion.
func NewConverter(images ImageFetcher, cards CardFetcher) *Converter {
	return &Converter{images: images, cards: cards}
}

// Convert downloads every image of draft and, when the composer showed a link
// preview, resolves its card. A card that cannot be resolved is dropped rather
// than failing the post; an image that cannot be loaded fails the conversion.
func (c *Converter) Convert(ctx context.Context, draft *Draft) (*Post, error) {
	if draft == nil {
		return nil, fmt.Errorf("convert: no draft")
	}

	post := &Post{Text: draft.Text}
	for i, raw := range draft.ImageURLs {
		img, err := c.images.Fetch(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("load image %d: %w", i+1, err)
		}
		post.Images = append(post.Images, toPostImage(img))
	}

	if draft.LinkDomain != "" && c.cards != nil {
		post.LinkCard = c.linkCard(ctx, draft)
	}
	return post, nil
}

func (c *Converter) linkCard(ctx context.Context, draft *Draft) *LinkCard {
	pageURL, ok := linkcard.FindURL(draft.Text, draft.LinkDomain)
	if !ok {
		logutil.Debugf("link card for %s has no url in text", draft.LinkDomain)
		return nil
	}

	card, err := c.cards.Fetch(ctx, pageURL)
	if err != nil {
		logutil.Warnf("link card %s: %v", pageURL, err)
		return nil
	}

	out := &LinkCard{URL: pageURL, Title: card.Title, Description: card.Description}
	if card.ImageURL != "" {
		img, err := c.images.Fetch(ctx, card.ImageURL)
		if err != nil {
			logutil.Warnf("link card thumbnail %s: %v", card.ImageURL, err)
		} else {
			thumb := toPostImage(img)
			out.Thumbnail = &thumb
		}
	}
	return out
}

func toPostImage(img media.Image) PostImage {
	return PostImage{Binary: img.Data, MimeType: img.MimeType, Width: img.Width, Height: img.Height}
}
