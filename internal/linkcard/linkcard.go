// Package linkcard locates the link a draft previews and reads its OpenGraph metadata.
package linkcard

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxPageBytes = 2 << 20

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Card is the metadata shown in a link preview.
type Card struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
}

// FindURL returns the first URL in text whose host matches domain. When no
// URL matches, the first URL in text is returned so a card whose displayed
// domain differs from the link (shorteners, redirects) still resolves.
func FindURL(text, domain string) (string, bool) {
	candidates := urlPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		return "", false
	}
	want := normalizeHost(domain)
	for i, c := range candidates {
		c = trimTrailing(c)
		candidates[i] = c
		u, err := url.Parse(c)
		if err != nil {
			continue
		}
		if want != "" && normalizeHost(u.Hostname()) == want {
			return c, true
		}
	}
	return candidates[0], true
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}

func trimTrailing(s string) string {
	s = strings.TrimRight(s, ".,;:!?'\"")
	if strings.HasSuffix(s, ")") && !strings.Contains(s, "(") {
		s = strings.TrimSuffix(s, ")")
	}
	return s
}

// Fetcher downloads pages and extracts Card metadata.
type Fetcher struct {
	client *http.Client
	policy *bluemonday.Policy
}

// NewFetcher returns a fetcher using client, or a pooled client when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Fetcher{client: client, policy: bluemonday.StrictPolicy()}
}

// Fetch downloads pageURL and parses its metadata.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Card{}, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := f.client.Do(req)
	if err != nil {
		return Card{}, fmt.Errorf("fetch link card: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Card{}, fmt.Errorf("fetch link card: unexpected status %s", resp.Status)
	}

	card, err := f.Parse(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL)
	if err != nil {
		return Card{}, err
	}
	card.URL = pageURL
	return card, nil
}

// Parse extracts OpenGraph (falling back to <title> and meta description) from
// an HTML document. Relative image URLs resolve against base.
func (f *Fetcher) Parse(r io.Reader, base *url.URL) (Card, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return Card{}, fmt.Errorf("parse html: %w", err)
	}

	meta := map[string]string{}
	var title string
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.DataAtom {
			case atom.Meta:
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				if key != "" {
					if _, seen := meta[key]; !seen {
						meta[key] = attr(n, "content")
					}
				}
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	card := Card{
		Title:       firstNonEmpty(meta["og:title"], meta["twitter:title"], title),
		Description: firstNonEmpty(meta["og:description"], meta["twitter:description"], meta["description"]),
	}
	card.Title = f.clean(card.Title)
	card.Description = f.clean(card.Description)

	if img := firstNonEmpty(meta["og:image"], meta["og:image:url"], meta["twitter:image"]); img != "" {
		if u, err := url.Parse(img); err == nil {
			if base != nil {
				u = base.ResolveReference(u)
			}
			card.ImageURL = u.String()
		}
	}
	return card, nil
}

func (f *Fetcher) clean(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
