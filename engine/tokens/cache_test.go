package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStableForIdenticalText(t *testing.T) {
	a := Fingerprint256("hello world")
	b := Fingerprint256("hello world")
	require.Equal(t, a, b)
	require.NotEqual(t, a, Fingerprint256("hello world!"))
}

func TestSortAndDedupDropsZeroLengthAndShallower(t *testing.T) {
	raw := []Raw{
		{Line: 0, Column: 0, Length: 0, TokenType: 1, Depth: 0},
		{Line: 0, Column: 5, Length: 3, TokenType: 2, Depth: 0},
		{Line: 0, Column: 5, Length: 3, TokenType: 9, Depth: 1}, // deeper, same position: wins
		{Line: 1, Column: 0, Length: 4, TokenType: 3, Depth: 0},
	}
	abs := SortAndDedup(raw)
	require.Len(t, abs, 2)
	require.Equal(t, uint32(9), abs[0].TokenType)
	require.Equal(t, 1, abs[1].Line)
}

func TestEncodeDeltaEncodesRelativeToPrevious(t *testing.T) {
	abs := []Absolute{
		{Line: 0, Column: 0, Length: 3, TokenType: 1},
		{Line: 0, Column: 5, Length: 2, TokenType: 2},
		{Line: 2, Column: 1, Length: 1, TokenType: 3},
	}
	enc := Encode(abs)
	require.Equal(t, Encoded{DeltaLine: 0, DeltaStart: 0, Length: 3, TokenType: 1}, enc[0])
	require.Equal(t, Encoded{DeltaLine: 0, DeltaStart: 5, Length: 2, TokenType: 2}, enc[1])
	require.Equal(t, Encoded{DeltaLine: 2, DeltaStart: 1, Length: 1, TokenType: 3}, enc[2])
}

func TestCacheGetReturnsCachedOnMatchingFingerprint(t *testing.T) {
	c := NewCache()
	calls := 0
	compute := func() []Absolute {
		calls++
		return []Absolute{{Line: 0, Column: 0, Length: 1}}
	}
	fp := Fingerprint256("x")
	e1 := c.Get(fp, compute)
	e2 := c.Get(fp, compute)
	require.Equal(t, e1.ResultID, e2.ResultID)
	require.Equal(t, 1, calls)
}

func TestDeltaEmptyWhenResultIDUnchanged(t *testing.T) {
	c := NewCache()
	entry := c.Get(Fingerprint256("x"), func() []Absolute {
		return []Absolute{{Line: 0, Column: 0, Length: 1}}
	})
	edits, resultID, ok := c.Delta(entry.ResultID)
	require.True(t, ok)
	require.Empty(t, edits)
	require.Equal(t, entry.ResultID, resultID)
}

// TestDeltaPrefixSuffixMatch mirrors the three-token before/after fixture:
// one token's length changes in the middle, leaving a common prefix of 1
// and a common suffix of 1, so the delta replaces exactly one token (5
// u32 slots).
func TestDeltaPrefixSuffixMatch(t *testing.T) {
	c := NewCache()
	before := []Absolute{
		{Line: 0, Column: 0, Length: 3, TokenType: 1},
		{Line: 1, Column: 0, Length: 4, TokenType: 2},
		{Line: 2, Column: 0, Length: 5, TokenType: 3},
	}
	after := []Absolute{
		{Line: 0, Column: 0, Length: 3, TokenType: 1},
		{Line: 1, Column: 0, Length: 9, TokenType: 2}, // length changed
		{Line: 2, Column: 0, Length: 5, TokenType: 3},
	}
	e1 := c.Get(Fingerprint256("before"), func() []Absolute { return before })
	e2 := c.Get(Fingerprint256("after"), func() []Absolute { return after })

	edits, resultID, ok := c.Delta(e1.ResultID)
	require.True(t, ok)
	require.Equal(t, e2.ResultID, resultID)
	require.Len(t, edits, 1)
	require.Equal(t, 5, edits[0].Start) // prefix_len(1) * 5
	require.Equal(t, 5, edits[0].DeleteCount)
	require.Len(t, edits[0].Data, 5)
}

// TestDeltaLineShiftGuardDisablesSuffixMatch mirrors scenario 3: inserting
// a line shifts every subsequent token's line number, so even though the
// tail tokens are otherwise identical in content, the guard must disable
// suffix matching because the total line-delta sum differs.
func TestDeltaLineShiftGuardDisablesSuffixMatch(t *testing.T) {
	c := NewCache()
	before := []Absolute{
		{Line: 0, Column: 0, Length: 1, TokenType: 1}, // A
		{Line: 1, Column: 0, Length: 1, TokenType: 2}, // B
		{Line: 2, Column: 0, Length: 1, TokenType: 3}, // C
		{Line: 3, Column: 0, Length: 1, TokenType: 4}, // D
		{Line: 4, Column: 0, Length: 1, TokenType: 5}, // E
	}
	after := []Absolute{
		{Line: 0, Column: 0, Length: 1, TokenType: 1}, // A unchanged
		{Line: 2, Column: 0, Length: 1, TokenType: 2}, // B shifted down a line
		{Line: 3, Column: 0, Length: 1, TokenType: 3}, // C shifted
		{Line: 4, Column: 0, Length: 1, TokenType: 4}, // D shifted
		{Line: 5, Column: 0, Length: 1, TokenType: 5}, // E shifted
	}
	e1 := c.Get(Fingerprint256("before"), func() []Absolute { return before })
	_ = c.Get(Fingerprint256("after"), func() []Absolute { return after })

	edits, _, ok := c.Delta(e1.ResultID)
	require.True(t, ok)
	require.Len(t, edits, 1)
	// Common prefix is just "A" (index 0); since Σdelta_line differs
	// (4 vs 5), suffix matching must be disabled, so the delete spans from
	// the prefix straight to the end of the old sequence.
	require.Equal(t, 5, edits[0].Start)         // 1 token * 5
	require.Equal(t, (5-1)*5, edits[0].DeleteCount) // delete B..E
}

// TestDeltaMiddleReplacementEncodesRelativeToCommonPrefix mirrors a
// same-line splice after a non-empty common prefix: the replaced token's
// DeltaStart must be computed relative to the last common-prefix token,
// not the document origin, or the client reconstructs it at the wrong
// column.
func TestDeltaMiddleReplacementEncodesRelativeToCommonPrefix(t *testing.T) {
	c := NewCache()
	before := []Absolute{
		{Line: 0, Column: 0, Length: 2, TokenType: 1},
		{Line: 0, Column: 4, Length: 2, TokenType: 2},
		{Line: 0, Column: 8, Length: 2, TokenType: 3},
		{Line: 1, Column: 0, Length: 2, TokenType: 4},
	}
	after := []Absolute{
		{Line: 0, Column: 0, Length: 2, TokenType: 1},
		{Line: 0, Column: 4, Length: 2, TokenType: 2},
		{Line: 0, Column: 8, Length: 5, TokenType: 3}, // length changed 2 -> 5
		{Line: 1, Column: 0, Length: 2, TokenType: 4},
	}
	e1 := c.Get(Fingerprint256("before"), func() []Absolute { return before })
	_ = c.Get(Fingerprint256("after"), func() []Absolute { return after })

	edits, _, ok := c.Delta(e1.ResultID)
	require.True(t, ok)
	require.Len(t, edits, 1)
	require.Len(t, edits[0].Data, 5)
	// DeltaStart for the replaced token must be 4 (8 - prefix token's
	// column 4), not 8 (8 - document origin).
	require.Equal(t, uint32(4), edits[0].Data[1])
}

func TestFilterRangeStrictInclusion(t *testing.T) {
	abs := []Absolute{
		{Line: 0, Column: 0, Length: 3}, // ends at col 3, before range start col 5
		{Line: 1, Column: 2, Length: 2}, // inside
		{Line: 5, Column: 0, Length: 1}, // after range
	}
	out := FilterRange(abs, 0, 5, 2, 0)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Line)
}
