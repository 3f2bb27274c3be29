package executor

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/index"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
)

// entry is an operand stack slot. Operands stay unresolved until an operator
// needs them, which lets negations be folded into a set difference and
// phrases be matched only inside an already narrowed candidate set.
type entry struct {
	op  index.Operand
	set *roaring.Bitmap
}

func (e entry) resolved() bool { return e.set != nil }

func (e entry) negatedOperand() bool { return !e.resolved() && e.op.Negated }

func (e entry) phraseOperand() bool { return !e.resolved() && e.op.Phrase && !e.op.Negated }

func resolve(s index.Searcher, e entry) *roaring.Bitmap {
	if e.resolved() {
		return e.set
	}
	return s.Search(e.op)
}

// positive resolves the un-negated form of an unresolved negated operand.
func positive(s index.Searcher, e entry) *roaring.Bitmap {
	return s.Search(e.op.Positive())
}

// Evaluate computes the set of documents matching a postfix query. The
// result is the same as resolving every operand to its document set and
// applying the operators in order; operators that lack two operands are
// skipped and any operands left over at the end are intersected.
func Evaluate(s index.Searcher, postfix []parser.Token) *roaring.Bitmap {
	stack := make([]entry, 0, len(postfix))
	for _, tok := range postfix {
		switch {
		case tok.IsOperand():
			stack = append(stack, entry{op: tok.Operand()})
		case tok.IsOperator():
			if len(stack) < 2 {
				continue
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			var set *roaring.Bitmap
			if tok.Kind == parser.KindAnd {
				set = and(s, left, right)
			} else {
				set = or(s, left, right)
			}
			stack = append(stack, entry{set: set})
		}
	}

	switch len(stack) {
	case 0:
		return roaring.New()
	case 1:
		return resolve(s, stack[0])
	}
	result := resolve(s, stack[0])
	for _, e := range stack[1:] {
		result = and(s, entry{set: result}, e)
	}
	return result
}

func and(s index.Searcher, a, b entry) *roaring.Bitmap {
	switch {
	case a.negatedOperand() && b.negatedOperand():
		// !a & !b == U - (a | b)
		return roaring.AndNot(s.Universe(), roaring.Or(positive(s, a), positive(s, b)))
	case b.negatedOperand():
		return roaring.AndNot(resolve(s, a), positive(s, b))
	case a.negatedOperand():
		return roaring.AndNot(resolve(s, b), positive(s, a))
	case a.phraseOperand() && b.resolved():
		return s.SearchPhraseWithin(a.op.Words, b.set)
	case b.phraseOperand() && a.resolved():
		return s.SearchPhraseWithin(b.op.Words, a.set)
	}
	return roaring.And(resolve(s, a), resolve(s, b))
}

func or(s index.Searcher, a, b entry) *roaring.Bitmap {
	switch {
	case a.negatedOperand() && b.negatedOperand():
		// !a | !b == U - (a & b)
		return roaring.AndNot(s.Universe(), roaring.And(positive(s, a), positive(s, b)))
	case a.negatedOperand():
		// !a | b == U - (a - b)
		return roaring.AndNot(s.Universe(), roaring.AndNot(positive(s, a), resolve(s, b)))
	case b.negatedOperand():
		return roaring.AndNot(s.Universe(), roaring.AndNot(positive(s, b), resolve(s, a)))
	}
	return roaring.Or(resolve(s, a), resolve(s, b))
}
