package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/registry"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func TestPublishFetchRoundTrip(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize + 4096)
	master := simrfm.Attach(region, 0)
	slave := simrfm.Attach(region, 1)

	require.NoError(t, registry.Publish(master, 0, wire.PeerLayout{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1}))
	require.NoError(t, registry.Publish(slave, 1, wire.PeerLayout{WriteOffset: 3156, OutputSize: 16, DownsampleFactor: 1}))

	table, err := registry.Fetch(slave, 2)
	require.NoError(t, err)
	require.Equal(t, wire.PeerLayout{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1}, table[0])
	require.Equal(t, wire.PeerLayout{WriteOffset: 3156, OutputSize: 16, DownsampleFactor: 1}, table[1])
}

func TestCheckContiguityOK(t *testing.T) {
	table := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
		{WriteOffset: 3152, OutputSize: 16, DownsampleFactor: 1},
		{WriteOffset: 3168, OutputSize: 8, DownsampleFactor: 2},
	}
	require.NoError(t, registry.CheckContiguity(table))
}

func TestCheckContiguityViolation(t *testing.T) {
	table := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 16, DownsampleFactor: 1},
		{WriteOffset: 3156, OutputSize: 16, DownsampleFactor: 1}, // gap: should be 3152
	}
	err := registry.CheckContiguity(table)
	require.Error(t, err)
	var cerr *registry.ContiguityError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, 0, cerr.Index)
}
