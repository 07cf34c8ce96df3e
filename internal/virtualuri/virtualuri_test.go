package virtualuri

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndParseRoundTrip(t *testing.T) {
	raw := Build("lua", "lua-0", "file:///home/user/doc.md")
	parsed, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "lua", parsed.Language)
	require.Equal(t, "lua-0", parsed.RegionID)
	require.Equal(t, "file:///home/user/doc.md", parsed.HostURI)
}

func TestParseRejectsWrongScheme(t *testing.T) {
	_, err := Parse("file:///home/user/doc.md")
	require.Error(t, err)
}

func TestIsVirtual(t *testing.T) {
	require.True(t, IsVirtual("tsls-virtual://lua/lua-0?host=x"))
	require.False(t, IsVirtual("file:///doc.md"))
}

func TestBuildDistinctRegionsDistinctURIs(t *testing.T) {
	a := Build("lua", "lua-0", "file:///doc.md")
	b := Build("lua", "lua-1", "file:///doc.md")
	require.NotEqual(t, a, b)
}
