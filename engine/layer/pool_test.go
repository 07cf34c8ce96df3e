package layer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func registryWithLua(t *testing.T) *LanguageRegistry {
	t.Helper()
	reg := NewLanguageRegistry()
	require.NoError(t, RegisterBuiltins(reg, nil))
	return reg
}

func TestAcquireUnregisteredLanguageFails(t *testing.T) {
	p := NewPool(registryWithLua(t))
	_, ok := p.Acquire("nope")
	require.False(t, ok)
}

func TestAcquireInjectionUnregisteredLanguageFails(t *testing.T) {
	p := NewPool(registryWithLua(t))
	_, ok := p.AcquireInjection(context.Background(), "nope", time.Second)
	require.False(t, ok)
}

func TestAcquireInjectionReusesReleasedParser(t *testing.T) {
	p := NewPool(registryWithLua(t))

	parser, ok := p.AcquireInjection(context.Background(), "lua", time.Second)
	require.True(t, ok)
	p.ReleaseInjection("lua", time.Second, parser)

	reused, ok := p.AcquireInjection(context.Background(), "lua", time.Second)
	require.True(t, ok)
	require.Same(t, parser, reused)
}

func TestAcquireInjectionDistinctTimeoutsAreSeparateSubPools(t *testing.T) {
	p := NewPool(registryWithLua(t))

	a, ok := p.AcquireInjection(context.Background(), "lua", time.Second)
	require.True(t, ok)
	p.ReleaseInjection("lua", time.Second, a)

	// A different timeout key must not see the first sub-pool's entry.
	b, ok := p.AcquireInjection(context.Background(), "lua", 2*time.Second)
	require.True(t, ok)
	require.NotSame(t, a, b)
}

func TestAcquireInjectionRespectsCanceledContext(t *testing.T) {
	p := NewPool(registryWithLua(t))
	// Zero the burst so no new parser could be constructed, and cancel the
	// context up front: AcquireInjection must return ok=false rather than
	// block.
	p.injectionSpawns.SetBurst(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := p.AcquireInjection(ctx, "lua", time.Second)
	require.False(t, ok)
}
