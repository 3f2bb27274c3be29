package index

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/tokenizer"
	apperrors "github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/errors"
)

// Searcher is the read side of the index. Every returned bitmap is a fresh
// copy owned by the caller.
type Searcher interface {
	SearchWord(word string) *roaring.Bitmap
	SearchPhrase(words []string) *roaring.Bitmap
	SearchPhraseWithin(words []string, candidates *roaring.Bitmap) *roaring.Bitmap
	Search(op Operand) *roaring.Bitmap
	Universe() *roaring.Bitmap
	Generation() uint64
}

// Index is a positional inverted index. It is append-only: documents are
// added once and never removed or re-indexed.
type Index struct {
	mu         sync.RWMutex
	terms      map[string]*postings
	docs       []*Document
	sequences  [][]string
	byURL      map[string]*Document
	universe   *roaring.Bitmap
	interner   *tokenizer.Interner
	epoch      string
	generation uint64
}

func New() *Index {
	return &Index{
		terms:    make(map[string]*postings),
		byURL:    make(map[string]*Document),
		universe: roaring.New(),
		interner: tokenizer.NewInterner(),
		epoch:    uuid.NewString(),
	}
}

// AddDocument records the word sequence of doc and assigns it the next
// document ID. An empty sequence is ignored. A document that was already
// indexed is rejected with ErrDocumentExists.
func (ix *Index) AddDocument(doc *Document, words []string) error {
	if doc == nil {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "nil document")
	}
	if len(words) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.byURL[doc.URL]; exists || doc.ID != 0 {
		return apperrors.Newf(apperrors.ErrDocumentExists, http.StatusConflict, "document %q", doc.URL)
	}
	ix.insert(uint32(len(ix.docs)+1), doc, words)
	ix.generation++
	return nil
}

func (ix *Index) insert(id uint32, doc *Document, words []string) {
	sequence := make([]string, len(words))
	for pos, w := range words {
		word := ix.interner.Intern(w)
		sequence[pos] = word
		p, ok := ix.terms[word]
		if !ok {
			p = newPostings()
			ix.terms[word] = p
		}
		p.docs.Add(id)
		p.positions[id] = append(p.positions[id], pos)
	}
	doc.ID = id
	ix.docs = append(ix.docs, doc)
	ix.sequences = append(ix.sequences, sequence)
	ix.byURL[doc.URL] = doc
	ix.universe.Add(id)
}

// View runs fn against a single consistent state of the index. Writers are
// blocked until fn returns, so fn must not call AddDocument.
func (ix *Index) View(fn func(s Searcher)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fn(view{ix: ix})
}

func (ix *Index) SearchWord(word string) *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return view{ix: ix}.SearchWord(word)
}

func (ix *Index) SearchPhrase(words []string) *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return view{ix: ix}.SearchPhrase(words)
}

func (ix *Index) SearchPhraseWithin(words []string, candidates *roaring.Bitmap) *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return view{ix: ix}.SearchPhraseWithin(words, candidates)
}

func (ix *Index) Search(op Operand) *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return view{ix: ix}.Search(op)
}

func (ix *Index) Universe() *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.universe.Clone()
}

// Document returns the indexed document with the given ID. Asking for an ID
// the index never assigned is a programming error and panics.
func (ix *Index) Document(id uint32) *Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.document(id)
}

func (ix *Index) document(id uint32) *Document {
	if id == 0 || int(id) > len(ix.docs) {
		panic(fmt.Sprintf("index: unknown document id %d", id))
	}
	return ix.docs[id-1]
}

// Documents resolves a set of IDs to documents in ascending ID order.
func (ix *Index) Documents(set *roaring.Bitmap) []*Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	docs := make([]*Document, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		docs = append(docs, ix.document(it.Next()))
	}
	return docs
}

// Lookup finds an indexed document by URL.
func (ix *Index) Lookup(url string) (*Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.byURL[url]
	return doc, ok
}

// Words returns a copy of the word sequence recorded for a document.
func (ix *Index) Words(id uint32) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.document(id)
	return slices.Clone(ix.sequences[id-1])
}

func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.terms)
}

// Generation increases every time a document is added.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// Epoch is assigned when the index is created or restored and never changes.
func (ix *Index) Epoch() string {
	return ix.epoch
}

func (ix *Index) Version() Version {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Version{Epoch: ix.epoch, Generation: ix.generation}
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Documents:  len(ix.docs),
		Terms:      len(ix.terms),
		Generation: ix.generation,
	}
}

// Snapshot returns every indexed document in ID order.
func (ix *Index) Snapshot() []DocumentRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	records := make([]DocumentRecord, 0, len(ix.docs))
	for i, doc := range ix.docs {
		records = append(records, DocumentRecord{
			ID:           doc.ID,
			URL:          doc.URL,
			Connectivity: doc.Connectivity(),
			Words:        ix.sequences[i],
		})
	}
	return records
}

// Restore rebuilds an index from snapshot records, keeping their IDs. IDs
// must form the sequence 1..n once sorted.
func Restore(records []DocumentRecord) (*Index, error) {
	sorted := slices.Clone(records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	ix := New()
	for i, rec := range sorted {
		if rec.ID != uint32(i+1) {
			return nil, apperrors.Newf(apperrors.ErrCorruptSnapshot, http.StatusInternalServerError,
				"expected document id %d, found %d", i+1, rec.ID)
		}
		if len(rec.Words) == 0 {
			return nil, apperrors.Newf(apperrors.ErrCorruptSnapshot, http.StatusInternalServerError,
				"document %d has no words", rec.ID)
		}
		if _, dup := ix.byURL[rec.URL]; dup {
			return nil, apperrors.Newf(apperrors.ErrCorruptSnapshot, http.StatusInternalServerError,
				"duplicate document url %q", rec.URL)
		}
		doc := RestoreDocument(rec.URL, rec.Connectivity)
		ix.insert(rec.ID, doc, rec.Words)
	}
	ix.generation = uint64(len(sorted))
	return ix, nil
}

// view implements Searcher without locking; the caller holds the read lock.
type view struct {
	ix *Index
}

func (v view) SearchWord(word string) *roaring.Bitmap {
	if rest, negated := strings.CutPrefix(word, "!"); negated {
		return roaring.AndNot(v.ix.universe, v.SearchWord(rest))
	}
	p, ok := v.ix.terms[word]
	if !ok {
		return roaring.New()
	}
	return p.docs.Clone()
}

func (v view) SearchPhrase(words []string) *roaring.Bitmap {
	return v.matchPhrase(words, nil)
}

func (v view) SearchPhraseWithin(words []string, candidates *roaring.Bitmap) *roaring.Bitmap {
	if candidates == nil || candidates.IsEmpty() {
		return roaring.New()
	}
	return v.matchPhrase(words, candidates)
}

func (v view) Search(op Operand) *roaring.Bitmap {
	var matched *roaring.Bitmap
	switch {
	case op.Phrase:
		matched = v.SearchPhrase(op.Words)
	case len(op.Words) == 0:
		matched = roaring.New()
	default:
		matched = v.SearchWord(op.Words[0])
	}
	if op.Negated {
		return roaring.AndNot(v.ix.universe, matched)
	}
	return matched
}

func (v view) Universe() *roaring.Bitmap {
	return v.ix.universe.Clone()
}

func (v view) Generation() uint64 {
	return v.ix.generation
}

// matchPhrase intersects the document sets of every word (starting from
// candidates when given) and keeps the documents where the words occur at
// consecutive positions.
func (v view) matchPhrase(words []string, candidates *roaring.Bitmap) *roaring.Bitmap {
	if len(words) == 0 {
		return roaring.New()
	}
	lists := make([]*postings, len(words))
	var result *roaring.Bitmap
	if candidates != nil {
		result = candidates.Clone()
	}
	for i, w := range words {
		p, ok := v.ix.terms[w]
		if !ok {
			return roaring.New()
		}
		lists[i] = p
		if result == nil {
			result = p.docs.Clone()
		} else {
			result.And(p.docs)
		}
		if result.IsEmpty() {
			return result
		}
	}
	if len(lists) == 1 {
		return result
	}

	matched := roaring.New()
	it := result.Iterator()
	for it.HasNext() {
		id := it.Next()
		if hasPhrase(lists, id) {
			matched.Add(id)
		}
	}
	return matched
}

func hasPhrase(lists []*postings, id uint32) bool {
	for _, start := range lists[0].positions[id] {
		if adjacentFrom(lists, id, start) {
			return true
		}
	}
	return false
}

func adjacentFrom(lists []*postings, id uint32, start int) bool {
	for offset := 1; offset < len(lists); offset++ {
		if _, found := slices.BinarySearch(lists[offset].positions[id], start+offset); !found {
			return false
		}
	}
	return true
}
