package remap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oberon-rt/rfmsync/internal/remap"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func TestBuildReadPlanTwoHostFullyCovered(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
		{WriteOffset: 3152, OutputSize: 16, DownsampleFactor: 1},
	}
	plan := remap.BuildReadPlan(peers, 3136, 32)

	require.Equal(t, int32(0), plan.FirstPeer)
	require.Equal(t, int32(1), plan.LastPeer)
	require.Equal(t, uint32(40), plan.TotalBytes)
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3136, Size: 16}, plan.PerPeer[0])
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3156, Size: 16}, plan.PerPeer[1])
}

func TestBuildReadPlanPartialWindowInsidePeerZero(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
	}
	plan := remap.BuildReadPlan(peers, 3140, 8)

	require.Equal(t, int32(0), plan.FirstPeer)
	require.Equal(t, int32(0), plan.LastPeer)
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3140, Size: 12}, plan.PerPeer[0])
	require.Equal(t, uint32(16), plan.TotalBytes)
}

func TestBuildReadPlanLeftEdgeOverlap(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1}, // [3136,3152)
		{WriteOffset: 3152, OutputSize: 16, DownsampleFactor: 1}, // [3152,3168)
	}
	// Window starts inside peer 0's tail and fully covers peer 1.
	plan := remap.BuildReadPlan(peers, 3148, 20) // [3148,3168)

	require.Equal(t, int32(0), plan.FirstPeer)
	require.Equal(t, int32(1), plan.LastPeer)
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3148, Size: 4}, plan.PerPeer[0])
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3156, Size: 16}, plan.PerPeer[1])
	require.Equal(t, uint32(4+16+4*2), plan.TotalBytes)
}

func TestBuildReadPlanRightEdgeOverlap(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1}, // [3136,3152)
		{WriteOffset: 3152, OutputSize: 16, DownsampleFactor: 1}, // [3152,3168)
	}
	// Window fully covers peer 0 and overlaps the first half of peer 1.
	plan := remap.BuildReadPlan(peers, 3136, 24) // [3136,3160)

	require.Equal(t, int32(0), plan.FirstPeer)
	require.Equal(t, int32(1), plan.LastPeer)
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3136, Size: 16}, plan.PerPeer[0])
	require.Equal(t, wire.PerPeerRead{SrcOffset: 3156, Size: 16}, plan.PerPeer[1])
}

func TestBuildReadPlanNoOverlap(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
	}
	plan := remap.BuildReadPlan(peers, 9000, 8)
	require.Equal(t, int32(-1), plan.FirstPeer)
	require.Equal(t, int32(-1), plan.LastPeer)
}

func TestScatterReproducesWindowDiscardingCounter(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
	}
	plan := remap.BuildReadPlan(peers, 3140, 8)
	require.Equal(t, uint32(16), plan.TotalBytes)

	// buf = 12 bytes of payload tail ([3140,3152)) + 4-byte counter.
	buf := make([]byte, 16)
	for i := 0; i < 12; i++ {
		buf[i] = byte(0xA0 + i)
	}
	buf[12], buf[13], buf[14], buf[15] = 0x2A, 0x00, 0x00, 0x00 // counter = 42

	external := make([]byte, 8)
	counterRead := make([]int32, 1)
	require.NoError(t, remap.Scatter(buf, plan, peers, 3140, 8, external, counterRead))

	require.Equal(t, buf[0:8], external)
	require.Equal(t, int32(42), counterRead[0])
}

func TestScatterTwoHostFullyCovered(t *testing.T) {
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
		{WriteOffset: 3152, OutputSize: 16, DownsampleFactor: 1},
	}
	plan := remap.BuildReadPlan(peers, 3136, 32)
	require.Equal(t, uint32(40), plan.TotalBytes)

	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = byte(i)
	}
	// Stamp the counter words (bytes 16-20 for peer 0, 36-40 for peer 1).
	buf[16], buf[17], buf[18], buf[19] = 7, 0, 0, 0
	buf[36], buf[37], buf[38], buf[39] = 9, 0, 0, 0

	external := make([]byte, 32)
	counterRead := make([]int32, 2)
	require.NoError(t, remap.Scatter(buf, plan, peers, 3136, 32, external, counterRead))

	require.Equal(t, int32(7), counterRead[0])
	require.Equal(t, int32(9), counterRead[1])
	require.Equal(t, buf[0:16], external[0:16])
	require.Equal(t, buf[20:36], external[16:32])
}
