package injection

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tsls/treesitter-ls/engine/position"
)

func TestResolveStaticLanguage(t *testing.T) {
	text := `local s = "regex here"`
	m := position.New(text)
	matches := []Match{
		{
			PatternIndex:   0,
			StaticLanguage: "regex",
			Captures: []Capture{
				{Name: "injection.content", StartByte: 11, EndByte: 21},
			},
		},
	}
	regions := Resolve(m, matches)
	require.Len(t, regions, 1)
	require.Equal(t, "regex", regions[0].Language)
	require.Equal(t, 11, regions[0].Start)
	require.Equal(t, 21, regions[0].End)
}

func TestResolveDynamicLanguageCapture(t *testing.T) {
	text := "```lua\nprint(1)\n```"
	m := position.New(text)
	matches := []Match{
		{
			PatternIndex: 0,
			Captures: []Capture{
				{Name: "injection.language", StartByte: 3, EndByte: 6, Text: "lua"},
				{Name: "injection.content", StartByte: 7, EndByte: 16},
			},
		},
	}
	regions := Resolve(m, matches)
	require.Len(t, regions, 1)
	require.Equal(t, "lua", regions[0].Language)
}

func TestResolveFirstPatternWinsOnOverlap(t *testing.T) {
	text := "xxxxxxxxxxxxxxxxxxxx"
	m := position.New(text)
	matches := []Match{
		{PatternIndex: 1, StaticLanguage: "b", Captures: []Capture{{Name: "injection.content", StartByte: 0, EndByte: 10}}},
		{PatternIndex: 0, StaticLanguage: "a", Captures: []Capture{{Name: "injection.content", StartByte: 0, EndByte: 10}}},
	}
	regions := Resolve(m, matches)
	require.Len(t, regions, 1)
	require.Equal(t, "a", regions[0].Language)
}

func TestResolveOffsetLuaDocComment(t *testing.T) {
	text := "---@param x number\nfunction f(x) end"
	m := position.New(text)
	matches := []Match{
		{
			PatternIndex:  0,
			StaticLanguage: "luacats",
			HasPropOffset: true,
			PropOffset:    Offset{StartRow: 0, StartColumn: 3, EndRow: 0, EndColumn: 0},
			Captures: []Capture{
				{Name: "injection.content", StartByte: 0, EndByte: 19},
			},
		},
	}
	regions := Resolve(m, matches)
	require.Len(t, regions, 1)
	require.Equal(t, 3, regions[0].Start)
}

func TestAssignIDsNumbersPerLanguage(t *testing.T) {
	regions := []Region{
		{Language: "lua", Start: 0, End: 5},
		{Language: "rust", Start: 10, End: 15},
		{Language: "lua", Start: 20, End: 25},
	}
	assigned := AssignIDs(regions)
	require.Equal(t, RegionID("lua-0"), assigned[0].ID)
	require.Equal(t, RegionID("rust-0"), assigned[1].ID)
	require.Equal(t, RegionID("lua-1"), assigned[2].ID)
}

func TestRegistryPreservesIDAcrossSmallShift(t *testing.T) {
	reg := NewRegistry()
	first := []Region{{Language: "lua", Start: 10, End: 30}}
	assigned, _ := reg.Reconcile("", first)
	require.Equal(t, RegionID("lua-0"), assigned[0].ID)

	// Simulate an insertion earlier in the document shifting this region
	// forward by 5 bytes, content unchanged.
	shifted := []Region{{Language: "lua", Start: 15, End: 35}}
	assigned2, disappeared := reg.Reconcile("", shifted)
	require.Empty(t, disappeared)
	require.Equal(t, RegionID("lua-0"), assigned2[0].ID)
}

func TestRegistryReportsDisappearedRegion(t *testing.T) {
	reg := NewRegistry()
	reg.Reconcile("", []Region{{Language: "lua", Start: 10, End: 30}})
	reg.MarkVirtualOpened("lua-0")

	_, disappeared := reg.Reconcile("", nil)
	require.Equal(t, []RegionID{"lua-0"}, disappeared)
}

func TestRegistryTwoLuaBlocksDisjointIDs(t *testing.T) {
	reg := NewRegistry()
	assigned, _ := reg.Reconcile("", []Region{
		{Language: "lua", Start: 0, End: 10},
		{Language: "lua", Start: 20, End: 30},
	})
	require.Equal(t, RegionID("lua-0"), assigned[0].ID)
	require.Equal(t, RegionID("lua-1"), assigned[1].ID)
}

// TestRegistryNewRegionPastSurvivorDoesNotCollide mirrors a second lua
// block appearing alongside a surviving lua-0: the new region must become
// lua-1, never re-mint lua-0, even though the new-index counter starts
// fresh on every Reconcile call.
func TestRegistryNewRegionPastSurvivorDoesNotCollide(t *testing.T) {
	reg := NewRegistry()
	first, _ := reg.Reconcile("", []Region{{Language: "lua", Start: 0, End: 10}})
	require.Equal(t, RegionID("lua-0"), first[0].ID)

	second, disappeared := reg.Reconcile("", []Region{
		{Language: "lua", Start: 0, End: 10},
		{Language: "lua", Start: 1000, End: 1010},
	})
	require.Empty(t, disappeared)
	require.Equal(t, RegionID("lua-0"), second[0].ID)
	require.Equal(t, RegionID("lua-1"), second[1].ID)
	require.NotEqual(t, second[0].ID, second[1].ID)
}

// TestRegistryScopesPreviousPerOriginatingLayer mirrors two distinct
// nested layers (different parent scopes) each injecting their own lua
// block: reconciling one scope must not clobber the other's state, so
// both keep their own stable lua-0 across repeated calls.
func TestRegistryScopesPreviousPerOriginatingLayer(t *testing.T) {
	reg := NewRegistry()
	a1, _ := reg.Reconcile("markdown-0", []Region{{Language: "lua", Start: 0, End: 10}})
	require.Equal(t, RegionID("lua-0"), a1[0].ID)

	b1, _ := reg.Reconcile("markdown-1", []Region{{Language: "lua", Start: 50, End: 60}})
	require.Equal(t, RegionID("lua-0"), b1[0].ID)

	// Re-reconcile scope "markdown-0" again; it must still see its own
	// prior assignment, not be starting fresh because "markdown-1" was
	// reconciled in between.
	a2, disappeared := reg.Reconcile("markdown-0", []Region{{Language: "lua", Start: 0, End: 10}})
	require.Empty(t, disappeared)
	require.Equal(t, RegionID("lua-0"), a2[0].ID)

	b2, disappeared2 := reg.Reconcile("markdown-1", []Region{{Language: "lua", Start: 50, End: 60}})
	require.Empty(t, disappeared2)
	require.Equal(t, RegionID("lua-0"), b2[0].ID)
}
