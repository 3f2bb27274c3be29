package crawler

import (
	"net/url"
	"strings"
)

// ResolveLink resolves href against the page it was found on. It reports
// false for empty hrefs, in-page anchors, non-navigational schemes and
// anything that does not end up as an http, https or file URL. The fragment
// is dropped so that a#x and a#y name the same document.
func ResolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "data:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	if !supportedScheme(u.Scheme) {
		return nil, false
	}
	return u, true
}

// Followable reports whether the crawler should fetch u: only pages whose
// path ends in .html or .htm are crawled.
func Followable(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}

func supportedScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "file":
		return true
	}
	return false
}

// parseSeed accepts absolute http, https and file URLs.
func parseSeed(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !supportedScheme(u.Scheme) {
		return nil, false
	}
	if u.Scheme != "file" && u.Host == "" {
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}
