// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on every rune that is not a letter or a
// digit. Page bodies and quoted query phrases go through the same rules so
// that indexing and querying share one vocabulary.
package tokenizer

import (
	"strings"
	"unicode"
)

// IsWordRune reports whether r can be part of a word.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize breaks text into lowercased words in order of appearance. The
// result is never nil.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !IsWordRune(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		tokens = append(tokens, strings.ToLower(word))
	}
	return tokens
}

// Interner hands out one canonical string per distinct word so that equal
// tokens across documents share their backing storage.
type Interner struct {
	words map[string]string
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{words: make(map[string]string)}
}

// Intern returns the canonical copy of word, registering it on first use.
func (in *Interner) Intern(word string) string {
	if canonical, ok := in.words[word]; ok {
		return canonical
	}
	canonical := strings.Clone(word)
	in.words[canonical] = canonical
	return canonical
}

// Len returns the number of distinct words seen.
func (in *Interner) Len() int {
	return len(in.words)
}
