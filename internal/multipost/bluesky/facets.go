package bluesky

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/bluesky-social/indigo/api/bsky"
)

const maxTagRunes = 64

var (
	mentionPattern = regexp.MustCompile(`(?:^|\s|\()(@(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)`)
	linkPattern    = regexp.MustCompile(`(?:^|\s|\()(https?://\S+)`)
	tagPattern     = regexp.MustCompile(`(?:^|\s)([#＃][^\s#＃]+)`)
)

// HandleResolver maps a handle to its DID.
type HandleResolver func(ctx context.Context, handle string) (string, error)

// DetectFacets finds mentions, links and hashtags in text. Offsets are UTF-8
// byte positions. Mentions whose handle cannot be resolved are left as plain text.
func DetectFacets(ctx context.Context, text string, resolve HandleResolver) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet

	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		handle := strings.ToLower(text[start+1 : end])
		if resolve == nil {
			continue
		}
		did, err := resolve(ctx, handle)
		if err != nil || did == "" {
			logutil.Debugf("bluesky: skipping mention @%s: %v", handle, err)
			continue
		}
		facets = append(facets, facet(start, end, &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Mention: &bsky.RichtextFacet_Mention{Did: did},
		}))
	}

	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		uri := trimLinkSuffix(text[start:end])
		if uri == "" {
			continue
		}
		facets = append(facets, facet(start, start+len(uri), &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Link: &bsky.RichtextFacet_Link{Uri: uri},
		}))
	}

	for _, m := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		_, hashLen := utf8.DecodeRuneInString(text[start:end])
		tag := strings.TrimRightFunc(text[start+hashLen:end], unicode.IsPunct)
		if !validTag(tag) {
			continue
		}
		facets = append(facets, facet(start, start+hashLen+len(tag), &bsky.RichtextFacet_Features_Elem{
			RichtextFacet_Tag: &bsky.RichtextFacet_Tag{Tag: tag},
		}))
	}

	sort.SliceStable(facets, func(i, j int) bool {
		return facets[i].Index.ByteStart < facets[j].Index.ByteStart
	})
	return facets
}

func facet(start, end int, feature *bsky.RichtextFacet_Features_Elem) *bsky.RichtextFacet {
	return &bsky.RichtextFacet{
		Index: &bsky.RichtextFacet_ByteSlice{
			ByteStart: int64(start),
			ByteEnd:   int64(end),
		},
		Features: []*bsky.RichtextFacet_Features_Elem{feature},
	}
}

func trimLinkSuffix(uri string) string {
	uri = strings.TrimRight(uri, ".,;:!?'\"")
	if strings.HasSuffix(uri, ")") && !strings.Contains(uri, "(") {
		uri = strings.TrimSuffix(uri, ")")
	}
	return uri
}

func validTag(tag string) bool {
	if tag == "" || utf8.RuneCountInString(tag) > maxTagRunes {
		return false
	}
	return strings.IndexFunc(tag, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}
