package bluesky

import (
	"fmt"
	"regexp"
	"strings"
)

var postURIPattern = regexp.MustCompile(`at://did:plc:[a-z0-9]+/app\.bsky\.feed\.post/([a-z0-9]+)`)

// AppURL converts a post record URI into its public bsky.app link. ok is false
// when uri is not a did:plc feed post URI; callers treat that as "no link",
// not as a failure.
func AppURL(uri, handle string) (string, bool) {
	m := postURIPattern.FindStringSubmatch(strings.ToLower(uri))
	if len(m) < 2 {
		return "", false
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, m[1]), true
}
