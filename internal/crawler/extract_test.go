package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	page, err := Extract(strings.NewReader(`<html><head><title>The Title</title>
<style>p { color: red }</style><script>var hidden = "secret";</script></head>
<body><p>Hello, World!<b>bold</b>text</p><A HREF=" next.html ">Next</A><a name="anchor">x</a></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "title", "hello", "world", "bold", "text", "next", "x"}, page.Words)
	assert.Equal(t, []string{"next.html"}, page.Links)
}

func TestExtractEmptyDocument(t *testing.T) {
	page, err := Extract(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, page.Words)
	assert.NotNil(t, page.Words)
	assert.Empty(t, page.Links)
}

func TestExtractNestedSkippedElements(t *testing.T) {
	page, err := Extract(strings.NewReader(`<body>before<script>inside</script>after<style>css</style>end</body>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after", "end"}, page.Words)
}

func TestResolveLink(t *testing.T) {
	base, err := url.Parse("http://example.com/dir/page.html")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"other.html", "http://example.com/dir/other.html", true},
		{"/root.htm", "http://example.com/root.htm", true},
		{"../up.html#section", "http://example.com/up.html", true},
		{"https://other.org/x.html?q=1", "https://other.org/x.html?q=1", true},
		{"#top", "", false},
		{"", "", false},
		{"javascript:void(0)", "", false},
		{"MAILTO:someone@example.com", "", false},
		{"data:text/html,hi", "", false},
		{"ftp://example.com/file.html", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := ResolveLink(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestFollowable(t *testing.T) {
	for raw, want := range map[string]bool{
		"http://a/b.html":        true,
		"http://a/b.HTM":         true,
		"http://a/b.html?x=1":    true,
		"http://a/b.pdf":         false,
		"http://a/dir/":          false,
		"file:///tmp/index.html": true,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, Followable(u), raw)
	}
}

func TestParseSeed(t *testing.T) {
	for raw, want := range map[string]bool{
		"http://example.com/index.html": true,
		"file:///tmp/index.html":        true,
		"relative.html":                 false,
		"ftp://example.com/a.html":      false,
		"http://":                       false,
		"::bad":                         false,
	} {
		_, ok := parseSeed(raw)
		assert.Equal(t, want, ok, raw)
	}
}
