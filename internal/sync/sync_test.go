package sync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/sync"
)

func TestMasterStepThenTryReadIteration(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize)
	master := simrfm.Attach(region, 0)
	slave := simrfm.Attach(region, 1)

	require.NoError(t, sync.MasterStep(master, 42, 1.5))

	it, wallClock, ok, err := sync.TryReadIteration(slave, 10, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(42), it)
	require.InDelta(t, 1.5, wallClock, 1e-6)
}

func TestTryReadIterationExhaustsWhenNeverReady(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize)
	slave := simrfm.Attach(region, 1)

	_, _, ok, err := sync.TryReadIteration(slave, 3, time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMultipleStepsAdvanceIteration(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize)
	master := simrfm.Attach(region, 0)
	slave := simrfm.Attach(region, 1)

	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, sync.MasterStep(master, i, float64(i)*0.1))
		it, _, ok, err := sync.TryReadIteration(slave, 10, time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, it)
	}
}
