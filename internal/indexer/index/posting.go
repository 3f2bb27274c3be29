package index

import (
	"strings"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// Document is one crawled page. ID is zero until the index accepts the
// document's word sequence; afterwards only the connectivity counter changes.
type Document struct {
	ID           uint32
	URL          string
	connectivity atomic.Int32
}

// NewDocument creates an unindexed document whose connectivity starts at 1.
func NewDocument(url string) *Document {
	d := &Document{URL: url}
	d.connectivity.Store(1)
	return d
}

// RestoreDocument creates an unindexed document with a connectivity counted
// elsewhere, such as by a crawler in another process. Values below 1 are
// raised to 1.
func RestoreDocument(url string, connectivity int) *Document {
	d := &Document{URL: url}
	d.connectivity.Store(int32(max(connectivity, 1)))
	return d
}

// IncrementConnectivity records one more inbound reference to the document.
func (d *Document) IncrementConnectivity() {
	d.connectivity.Add(1)
}

// Connectivity returns the number of inbound references seen so far.
func (d *Document) Connectivity() int {
	return int(d.connectivity.Load())
}

// Operand is a searchable query unit: a single word or a phrase, either of
// which may be negated.
type Operand struct {
	Words   []string
	Phrase  bool
	Negated bool
}

// Word builds a bare word operand.
func Word(word string) Operand {
	return Operand{Words: []string{word}}
}

// Phrase builds a phrase operand.
func Phrase(words ...string) Operand {
	return Operand{Words: words, Phrase: true}
}

// Not returns the negated form of op.
func (op Operand) Not() Operand {
	op.Negated = !op.Negated
	return op
}

// Positive returns op without its negation.
func (op Operand) Positive() Operand {
	op.Negated = false
	return op
}

func (op Operand) String() string {
	var b strings.Builder
	if op.Negated {
		b.WriteByte('!')
	}
	if op.Phrase {
		b.WriteByte('"')
		b.WriteString(strings.Join(op.Words, " "))
		b.WriteByte('"')
		return b.String()
	}
	b.WriteString(strings.Join(op.Words, " "))
	return b.String()
}

// postings holds, for one word, the documents containing it and the ordered
// positions of every occurrence inside each of them.
type postings struct {
	docs      *roaring.Bitmap
	positions map[uint32][]int
}

func newPostings() *postings {
	return &postings{
		docs:      roaring.New(),
		positions: make(map[uint32][]int),
	}
}

// DocumentRecord is the serialisable form of an indexed document.
type DocumentRecord struct {
	ID           uint32   `json:"id"`
	URL          string   `json:"url"`
	Connectivity int      `json:"connectivity"`
	Words        []string `json:"words"`
}

// Version identifies one state of one index instance. Epoch is random per
// instance, so two indexes holding the same number of documents never share
// a Version.
type Version struct {
	Epoch      string
	Generation uint64
}

// Stats summarises the size of an index.
type Stats struct {
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	Generation uint64 `json:"generation"`
}
