package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingDeliverRoutesToWaiter(t *testing.T) {
	p := newPendingTable()
	ch := p.Register(1)
	ok := p.Deliver(1, response{Result: "hi"})
	require.True(t, ok)
	r := <-ch
	require.Equal(t, "hi", r.Result)
}

func TestPendingDeliverUnknownIDIsDropped(t *testing.T) {
	p := newPendingTable()
	ok := p.Deliver(99, response{Result: "x"})
	require.False(t, ok)
}

func TestPendingCancelRemovesEntry(t *testing.T) {
	p := newPendingTable()
	p.Register(1)
	p.Cancel(1)
	ok := p.Deliver(1, response{})
	require.False(t, ok)
}

func TestPendingFailAllDeliversToEveryWaiter(t *testing.T) {
	p := newPendingTable()
	ch1 := p.Register(1)
	ch2 := p.Register(2)
	p.FailAll(errors.New("boom"))
	r1 := <-ch1
	r2 := <-ch2
	require.Error(t, r1.Err)
	require.Error(t, r2.Err)
	require.Equal(t, 0, p.Len())
}

func TestPendingLenTracksRegistrations(t *testing.T) {
	p := newPendingTable()
	require.Equal(t, 0, p.Len())
	p.Register(1)
	require.Equal(t, 1, p.Len())
	p.Cancel(1)
	require.Equal(t, 0, p.Len())
}
