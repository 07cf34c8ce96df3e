package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fingerprint is a stable hash of document text; identical texts MUST
// yield identical fingerprints.
type Fingerprint string

// Fingerprint256 hashes text with SHA-256, encoded as hex — a stable,
// collision-resistant fingerprint independent of map iteration order or
// any in-process pointer identity.
func Fingerprint256(text string) Fingerprint {
	sum := sha256.Sum256([]byte(text))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Entry is one cache entry: the full absolute token sequence that produced
// a given fingerprint, plus its opaque result ID.
type Entry struct {
	Fingerprint Fingerprint
	ResultID    string
	Tokens      []Absolute
}

// resultCounter is the process-wide monotonic result_id counter named by
// the design notes' "global mutable state" section.
var resultCounter uint64

func nextResultID() string {
	return fmt.Sprintf("r%d", atomic.AddUint64(&resultCounter, 1))
}

// Cache holds the single most recent tokenization for one document. The
// spec's cache entry is "fingerprint-keyed", but a document only ever
// needs its latest entry kept live for delta computation, so Cache stores
// one entry plus the prior one (needed to validate a client's delta
// request against the previous result ID).
type Cache struct {
	mu       sync.Mutex
	current  *Entry
	previous *Entry
}

// NewCache constructs an empty per-document cache.
func NewCache() *Cache { return &Cache{} }

// Get returns the cached entry for fingerprint if it matches the current
// entry, or computes fresh via compute, inserts, and returns a new entry
// with a monotonic result ID.
func (c *Cache) Get(fp Fingerprint, compute func() []Absolute) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.Fingerprint == fp {
		return c.current
	}
	entry := &Entry{Fingerprint: fp, ResultID: nextResultID(), Tokens: compute()}
	c.previous = c.current
	c.current = entry
	return entry
}

// Delta computes a semanticTokens/full/delta response against previous
// result ID p, given the cache's state. ok is false if p does not match
// either the current or the immediately preceding cache entry — the
// caller must then return the full current token set.
//
// If p equals the current entry's result ID, returns an empty edit set
// (no change). If p equals the previous entry's result ID, computes the
// prefix/suffix delta with the line-shift guard.
func (c *Cache) Delta(p string) (edits []Edit, resultID string, ok bool) {
	c.mu.Lock()
	current, previous := c.current, c.previous
	c.mu.Unlock()

	if current == nil {
		return nil, "", false
	}
	if current.ResultID == p {
		return nil, current.ResultID, true
	}
	if previous == nil || previous.ResultID != p {
		return nil, "", false
	}
	return []Edit{computeDelta(previous.Tokens, current.Tokens)}, current.ResultID, true
}

// Edit is a single LSP SemanticTokensEdit: replace delete_count integers
// starting at start with data.
type Edit struct {
	Start       int
	DeleteCount int
	Data        []uint32
}

// computeDelta implements the prefix/suffix delta with the line-shift
// guard: longest common prefix of the two absolute-token sequences, then
// (unless the guard fires) the longest common suffix of what remains.
//
// The replacement data is sliced out of curr's own full delta-encoding
// rather than re-encoded from curr[prefixLen:currSuffixStart] in
// isolation: that slice's first entry must be delta-encoded relative to
// curr[prefixLen-1] (the last common-prefix token), not relative to the
// document origin. Encoding the whole sequence once and slicing the
// flattened u32s gets that for free, since curr[prefixLen-1] matches its
// counterpart in prev by construction of the common prefix.
func computeDelta(prev, curr []Absolute) Edit {
	prefixLen := commonPrefixLen(prev, curr)

	prevTotalLines := sumDeltaLines(prev)
	currTotalLines := sumDeltaLines(curr)

	suffixLen := 0
	if prevTotalLines == currTotalLines {
		suffixLen = commonSuffixLen(prev, curr, prefixLen)
	}

	prevSuffixStart := len(prev) - suffixLen
	currSuffixStart := len(curr) - suffixLen

	deleteCount := (prevSuffixStart - prefixLen) * 5
	currData := Flatten(Encode(curr))
	return Edit{
		Start:       prefixLen * 5,
		DeleteCount: deleteCount,
		Data:        currData[prefixLen*5 : currSuffixStart*5],
	}
}

func tokensEqual(a, b Absolute) bool {
	return a.Line == b.Line && a.Column == b.Column && a.Length == b.Length &&
		a.TokenType == b.TokenType && a.Modifiers == b.Modifiers
}

func commonPrefixLen(a, b []Absolute) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && tokensEqual(a[i], b[i]) {
		i++
	}
	return i
}

func commonSuffixLen(a, b []Absolute, prefixLen int) int {
	i, j := len(a)-1, len(b)-1
	n := 0
	for i >= prefixLen && j >= prefixLen && tokensEqual(a[i], b[j]) {
		i--
		j--
		n++
	}
	return n
}

// sumDeltaLines is the sum of per-token DeltaLine across the sequence —
// for a line-sorted sequence this telescopes to last.Line, since the first
// token's DeltaLine is measured from line 0.
func sumDeltaLines(abs []Absolute) int {
	if len(abs) == 0 {
		return 0
	}
	return abs[len(abs)-1].Line
}
