package crawler

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/tokenizer"
)

// Page is what the crawler keeps from a fetched document.
type Page struct {
	Words []string
	Links []string
}

// Extract parses an HTML document and returns its words, in document order,
// and the href of every anchor. Text under script and style elements is not
// indexed. Every tag acts as a word boundary.
func Extract(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	page := &Page{Words: []string{}}
	var skipDepth int

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		skipped := n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style)
		if skipped {
			skipDepth++
		}
		if skipDepth == 0 {
			switch {
			case n.Type == html.TextNode:
				page.Words = append(page.Words, tokenizer.Tokenize(n.Data)...)
			case n.Type == html.ElementNode && n.DataAtom == atom.A:
				for _, a := range n.Attr {
					if strings.EqualFold(a.Key, "href") {
						if val := strings.TrimSpace(a.Val); val != "" {
							page.Links = append(page.Links, val)
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if skipped {
			skipDepth--
		}
	}
	walk(root)
	return page, nil
}
