package coherence_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llcsim/approxcache/pkg/cache/coherence"
	"github.com/llcsim/approxcache/pkg/cache/req"
)

func Test_Sequential_Never_Skips_Or_Denies_Allocation(t *testing.T) {
	t.Parallel()

	s := coherence.NewSequential(3, 5)
	r := &req.MemReq{}
	require.False(t, s.StartAccess(r))
	require.True(t, s.ShouldAllocate(r))
}

func Test_Sequential_ProcessAccess_Adds_Fixed_Latency(t *testing.T) {
	t.Parallel()

	s := coherence.NewSequential(3, 5)
	require.Equal(t, req.Cycle(13), s.ProcessAccess(&req.MemReq{}, 0, 10))
}

func Test_Sequential_ProcessEviction_Adds_Fixed_Latency(t *testing.T) {
	t.Parallel()

	s := coherence.NewSequential(3, 5)
	require.Equal(t, req.Cycle(15), s.ProcessEviction(&req.MemReq{}, 0, 0, 10))
}

func Test_Sequential_Zero_Latency_Is_A_Noop(t *testing.T) {
	t.Parallel()

	s := coherence.NewSequential(0, 0)
	require.Equal(t, req.Cycle(10), s.ProcessAccess(&req.MemReq{}, 0, 10))
	require.Equal(t, req.Cycle(10), s.ProcessEviction(&req.MemReq{}, 0, 0, 10))
}
