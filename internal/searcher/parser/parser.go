// Package parser turns a raw query string into query tokens and reorders them
// into postfix form. The grammar is bare words, "quoted phrases", !negation
// of either, & (AND), | (OR), parentheses, and implicit AND between adjacent
// operands or groups.
package parser

import (
	"strings"
	"unicode"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/tokenizer"
)

type Kind int

const (
	KindWord Kind = iota
	KindPhrase
	KindAnd
	KindOr
	KindOpen
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindPhrase:
		return "phrase"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Token is one lexical unit of a query. Words is set for word and phrase
// tokens only; Negated only applies to them.
type Token struct {
	Kind    Kind
	Words   []string
	Negated bool
}

var (
	andToken   = Token{Kind: KindAnd}
	orToken    = Token{Kind: KindOr}
	openToken  = Token{Kind: KindOpen}
	closeToken = Token{Kind: KindClose}
)

func (t Token) IsOperand() bool {
	return t.Kind == KindWord || t.Kind == KindPhrase
}

func (t Token) IsOperator() bool {
	return t.Kind == KindAnd || t.Kind == KindOr
}

// Operand converts a word or phrase token into the index's search operand.
func (t Token) Operand() index.Operand {
	return index.Operand{
		Words:   t.Words,
		Phrase:  t.Kind == KindPhrase,
		Negated: t.Negated,
	}
}

func (t Token) String() string {
	switch t.Kind {
	case KindAnd:
		return "&"
	case KindOr:
		return "|"
	case KindOpen:
		return "("
	case KindClose:
		return ")"
	default:
		return t.Operand().String()
	}
}

// QueryPlan is a parsed query.
type QueryPlan struct {
	Raw     string
	Tokens  []Token
	Postfix []Token
}

// Parse tokenizes query and converts it to postfix order.
func Parse(query string) *QueryPlan {
	tokens := Tokenize(query)
	return &QueryPlan{
		Raw:     query,
		Tokens:  tokens,
		Postfix: ToPostfix(tokens),
	}
}

// Canonical renders the postfix tokens as a single string. Queries that
// differ only in spacing, case or redundant grouping share a canonical form.
func (p *QueryPlan) Canonical() string {
	parts := make([]string, len(p.Postfix))
	for i, tok := range p.Postfix {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

// Tokenize scans a raw query. It never fails: characters outside the grammar
// act as separators and an unterminated quote runs to the end of input.
func Tokenize(query string) []Token {
	runes := []rune(query)
	tokens := make([]Token, 0)
	var word strings.Builder
	negated := false

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, Token{Kind: KindWord, Words: []string{word.String()}, Negated: negated})
			word.Reset()
		}
		negated = false
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '(':
			flush()
			tokens = append(tokens, openToken)
		case r == ')':
			flush()
			tokens = append(tokens, closeToken)
		case r == '"':
			neg := negated && word.Len() == 0
			flush()
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			text := strings.ToLower(string(runes[i+1 : end]))
			tokens = append(tokens, Token{Kind: KindPhrase, Words: tokenizer.Tokenize(text), Negated: neg})
			i = end
		case r == '&':
			flush()
			tokens = append(tokens, andToken)
		case r == '|':
			flush()
			tokens = append(tokens, orToken)
		case r == '!' && word.Len() == 0 && !negated && i+1 < len(runes) &&
			(tokenizer.IsWordRune(runes[i+1]) || runes[i+1] == '"'):
			negated = true
		case tokenizer.IsWordRune(r):
			word.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// higherOrEqual reports whether the operator on top of the stack must be
// emitted before next is pushed. AND binds tighter than OR.
func higherOrEqual(top, next Token) bool {
	if !top.IsOperator() {
		return false
	}
	return top.Kind == KindAnd || next.Kind == KindOr
}

// ToPostfix reorders tokens with the shunting-yard algorithm, inserting an
// AND wherever an operand or an opening parenthesis directly follows an
// operand or a closing parenthesis. A closing parenthesis without a matching
// opening one is ignored, and unclosed opening parentheses are dropped.
func ToPostfix(tokens []Token) []Token {
	output := make([]Token, 0, len(tokens))
	stack := make([]Token, 0)
	lastOperand := false

	pushOperator := func(op Token) {
		for len(stack) > 0 && higherOrEqual(stack[len(stack)-1], op) {
			output = append(output, stack[len(stack)-1])
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, op)
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case KindAnd, KindOr:
			pushOperator(tok)
			lastOperand = false
		case KindOpen:
			if lastOperand {
				pushOperator(andToken)
			}
			stack = append(stack, tok)
			lastOperand = false
		case KindClose:
			if !hasOpen(stack) {
				continue
			}
			for stack[len(stack)-1].Kind != KindOpen {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			stack = stack[:len(stack)-1]
			lastOperand = true
		default:
			if lastOperand {
				pushOperator(andToken)
			}
			output = append(output, tok)
			lastOperand = true
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.IsOperator() {
			output = append(output, top)
		}
	}
	return output
}

func hasOpen(stack []Token) bool {
	for _, tok := range stack {
		if tok.Kind == KindOpen {
			return true
		}
	}
	return false
}
