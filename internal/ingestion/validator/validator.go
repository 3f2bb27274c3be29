// Package validator checks page events before they reach the index. It
// returns per-field error details.
package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/tokenizer"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/ingestion"
)

const (
	maxURLLength = 2048
	maxWords     = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidatePageEvent checks the URL, connectivity and words of ev. Words
// must already be normalised: lowercase letters and digits only.
func ValidatePageEvent(ev *ingestion.PageEvent) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(ev.URL) == "":
		errs["url"] = "url is required"
	case len(ev.URL) > maxURLLength:
		errs["url"] = fmt.Sprintf("url must be at most %d characters", maxURLLength)
	default:
		u, err := url.Parse(ev.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
			errs["url"] = "url must be an absolute http, https or file URL"
		}
	}
	if ev.Connectivity < 0 {
		errs["connectivity"] = "connectivity must not be negative"
	}
	switch {
	case len(ev.Words) == 0:
		errs["words"] = "words must not be empty"
	case len(ev.Words) > maxWords:
		errs["words"] = fmt.Sprintf("at most %d words are accepted", maxWords)
	default:
		for i, w := range ev.Words {
			if !normalised(w) {
				errs["words"] = fmt.Sprintf("word %d (%q) is not normalised", i, w)
				break
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func normalised(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !tokenizer.IsWordRune(r) || unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
