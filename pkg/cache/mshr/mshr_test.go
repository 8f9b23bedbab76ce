package mshr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/mshr"
	"github.com/llcsim/approxcache/pkg/cache/req"
)

func Test_TryAcquire_Admits_Up_To_Capacity(t *testing.T) {
	t.Parallel()

	p := mshr.New(2)
	require.True(t, p.TryAcquire(0))
	require.True(t, p.TryAcquire(0))
	require.False(t, p.TryAcquire(0))
	require.True(t, p.Full())
}

func Test_Release_Frees_A_Slot(t *testing.T) {
	t.Parallel()

	p := mshr.New(1)
	require.True(t, p.TryAcquire(0))
	require.False(t, p.TryAcquire(1))

	p.Release(2)
	require.False(t, p.Full())
	require.True(t, p.TryAcquire(3))
}

func Test_Release_On_Empty_Pool_Does_Not_Underflow(t *testing.T) {
	t.Parallel()

	p := mshr.New(1)
	p.Release(0)
	require.Equal(t, 0, p.InFlight())
}

func Test_DrainReady_Returns_Only_Requests_Strictly_Before_Now_In_Fifo_Order(t *testing.T) {
	t.Parallel()

	p := mshr.New(4)
	p.Park(req.MemReq{Cycle: 5, LineAddr: 1})
	p.Park(req.MemReq{Cycle: 8, LineAddr: 2})
	p.Park(req.MemReq{Cycle: 10, LineAddr: 3})

	ready := p.DrainReady(9)
	require.Len(t, ready, 2)
	require.Equal(t, req.Address(1), ready[0].LineAddr)
	require.Equal(t, req.Address(2), ready[1].LineAddr)

	rest := p.DrainReady(11)
	require.Len(t, rest, 1)
	require.Equal(t, req.Address(3), rest[0].LineAddr)
}

func Test_AllowLowPriority_Requires_Prior_Cycle_Idle(t *testing.T) {
	t.Parallel()

	p := mshr.New(4)
	require.True(t, p.AllowLowPriority(5)) // never acquired, lastAccCycle == 0

	p.TryAcquire(10)
	require.False(t, p.AllowLowPriority(11))
	require.True(t, p.AllowLowPriority(12))
}
