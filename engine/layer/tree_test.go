package layer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsls/treesitter-ls/engine/edit"
	"github.com/tsls/treesitter-ls/engine/injection"
)

// buildFakeDocument assembles a Document's layer tree by hand, bypassing
// Parse/ApplyEdit, so the tree-walking helpers (LayerAt, AllLayers) can be
// exercised without a live grammar.
func buildFakeDocument() *Document {
	host := &Layer{Language: "markdown", Depth: 0, Ranges: []edit.Range{{Start: 0, End: 100}}}
	lua0 := &Layer{Language: "lua", Depth: 1, RegionID: "lua-0", Ranges: []edit.Range{{Start: 10, End: 20}}}
	lua1 := &Layer{Language: "lua", Depth: 1, RegionID: "lua-1", Ranges: []edit.Range{{Start: 30, End: 40}}}
	nestedRegex := &Layer{Language: "regex", Depth: 2, RegionID: "regex-0", Ranges: []edit.Range{{Start: 32, End: 36}}}
	lua1.Children = append(lua1.Children, nestedRegex)
	host.Children = append(host.Children, lua0, lua1)

	return &Document{root: host, registry: injection.NewRegistry()}
}

func TestLayerAtReturnsDeepestContaining(t *testing.T) {
	d := buildFakeDocument()
	require.Equal(t, "markdown", d.LayerAt(5).Language)
	require.Equal(t, "lua", d.LayerAt(15).Language)
	require.Equal(t, "regex", d.LayerAt(34).Language)
	require.Equal(t, "lua", d.LayerAt(38).Language) // inside lua-1 but outside the nested regex range
}

func TestAllLayersDocumentOrder(t *testing.T) {
	d := buildFakeDocument()
	layers := d.AllLayers()
	require.Len(t, layers, 4)
	require.Equal(t, "markdown", layers[0].Language)
	require.Equal(t, injection.RegionID("lua-0"), layers[1].RegionID)
	require.Equal(t, injection.RegionID("lua-1"), layers[2].RegionID)
	require.Equal(t, injection.RegionID("regex-0"), layers[3].RegionID)
}

func TestLayerContains(t *testing.T) {
	l := &Layer{Ranges: []edit.Range{{Start: 10, End: 20}, {Start: 30, End: 40}}}
	require.True(t, l.Contains(10))
	require.False(t, l.Contains(20))
	require.True(t, l.Contains(39))
	require.False(t, l.Contains(25))
}

func TestLayerTextConcatenatesRanges(t *testing.T) {
	text := "0123456789ABCDEFGHIJ"
	l := &Layer{Ranges: []edit.Range{{Start: 0, End: 3}, {Start: 10, End: 13}}}
	require.Equal(t, "012ABC", l.Text(text))
}

func TestPathAtReturnsRootToDeepestChain(t *testing.T) {
	d := buildFakeDocument()
	path := d.PathAt(34)
	require.Len(t, path, 3)
	require.Equal(t, "markdown", path[0].Language)
	require.Equal(t, injection.RegionID("lua-1"), path[1].RegionID)
	require.Equal(t, injection.RegionID("regex-0"), path[2].RegionID)
}

func TestPathAtStopsAtShallowestContainingLayer(t *testing.T) {
	d := buildFakeDocument()
	path := d.PathAt(5)
	require.Len(t, path, 1)
	require.Equal(t, "markdown", path[0].Language)
}

func TestLocalToHostAndHostToLocalRoundTrip(t *testing.T) {
	l := &Layer{
		RegionID: "lua-0",
		Ranges:   []edit.Range{{Start: 10, End: 20}, {Start: 30, End: 35}},
	}
	local, ok := l.HostToLocal(32)
	require.True(t, ok)
	require.Equal(t, 12, local)
	require.Equal(t, 32, l.LocalToHost(local))
}

func TestHostToLocalFalseOutsideRanges(t *testing.T) {
	l := &Layer{RegionID: "lua-0", Ranges: []edit.Range{{Start: 10, End: 20}}}
	_, ok := l.HostToLocal(25)
	require.False(t, ok)
}

func TestLocalToHostIdentityForHostLayer(t *testing.T) {
	l := &Layer{}
	require.Equal(t, 42, l.LocalToHost(42))
}
