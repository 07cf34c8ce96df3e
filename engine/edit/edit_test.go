package edit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdjustRangeEntirelyBefore(t *testing.T) {
	r := Range{Start: 0, End: 5}
	c := Change{Start: 10, End: 12, NewText: "xx"}
	out, ok := AdjustRange(r, c)
	require.True(t, ok)
	require.Equal(t, r, out)
}

func TestAdjustRangeEntirelyAfterShiftsByDelta(t *testing.T) {
	r := Range{Start: 10, End: 15}
	c := Change{Start: 0, End: 2, NewText: "xxxx"} // delta = +2
	out, ok := AdjustRange(r, c)
	require.True(t, ok)
	require.Equal(t, Range{Start: 12, End: 17}, out)
}

func TestAdjustRangeEditContainsRangeRemoved(t *testing.T) {
	r := Range{Start: 5, End: 10}
	c := Change{Start: 0, End: 20, NewText: "x"}
	_, ok := AdjustRange(r, c)
	require.False(t, ok)
}

func TestAdjustRangePrefixOverlap(t *testing.T) {
	r := Range{Start: 5, End: 10}
	c := Change{Start: 0, End: 7, NewText: "abc"} // eeNew = 3, delta = 3-7 = -4
	out, ok := AdjustRange(r, c)
	require.True(t, ok)
	require.Equal(t, Range{Start: 3, End: 6}, out)
}

func TestAdjustRangeEditInsideRange(t *testing.T) {
	r := Range{Start: 5, End: 20}
	c := Change{Start: 8, End: 10, NewText: "abcdef"} // delta = +4
	out, ok := AdjustRange(r, c)
	require.True(t, ok)
	require.Equal(t, Range{Start: 5, End: 24}, out)
}

func TestAdjustRangeSuffixOverlap(t *testing.T) {
	r := Range{Start: 5, End: 10}
	c := Change{Start: 8, End: 15, NewText: "ab"} // eeNew = 10
	out, ok := AdjustRange(r, c)
	require.True(t, ok)
	require.Equal(t, Range{Start: 5, End: 10}, out)
}

func TestAdjustRangeZeroWidthDropped(t *testing.T) {
	r := Range{Start: 5, End: 6}
	c := Change{Start: 5, End: 6, NewText: ""} // edit inside range: End 6-1 = 5 = Start
	_, ok := AdjustRange(r, c)
	require.False(t, ok)
}

func TestAdjustRangesDropsCollapsed(t *testing.T) {
	ranges := []Range{{0, 5}, {10, 20}, {30, 40}}
	c := Change{Start: 8, End: 25, NewText: "x"}
	out := AdjustRanges(ranges, c)
	require.Equal(t, []Range{{0, 5}, {30 + (1 - 17), 40 + (1 - 17)}}, out)
}

func TestTouchesDetectsOverlap(t *testing.T) {
	ranges := []Range{{0, 5}, {10, 20}}
	require.True(t, Touches(ranges, Change{Start: 3, End: 4}))
	require.True(t, Touches(ranges, Change{Start: 12, End: 12}))
	require.False(t, Touches(ranges, Change{Start: 6, End: 9}))
}
