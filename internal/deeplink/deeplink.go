// Package deeplink builds the pre-filled compose window used by services that
// are not posted to through an API.
package deeplink

import "net/url"

const (
	// IntentEndpoint is the compose endpoint opened in the popup.
	IntentEndpoint = "https://twitter.com/intent/tweet"

	PopupWidth  = 600
	PopupHeight = 400
)

// Popup describes the window the page should open.
type Popup struct {
	URL    string `json:"url"`
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ComposeURL returns the intent URL pre-filled with the page title and URL.
func ComposeURL(title, pageURL string) string {
	params := url.Values{}
	params.Set("text", title)
	params.Set("url", pageURL)
	return IntentEndpoint + "?" + params.Encode()
}

// Compose returns the popup for the given page.
func Compose(title, pageURL string) Popup {
	return Popup{
		URL:    ComposeURL(title, pageURL),
		Type:   "popup",
		Width:  PopupWidth,
		Height: PopupHeight,
	}
}
