package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/orchestrator"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func newHosts(t *testing.T) (*simrfm.Card, *simrfm.Card, wire.PeerLayoutTable) {
	t.Helper()
	region := simrfm.NewRegion(constants.HeaderSize + 4096)
	master := simrfm.Attach(region, 0)
	slave := simrfm.Attach(region, 1)
	peers := wire.PeerLayoutTable{
		{WriteOffset: 3136, OutputSize: 8, DownsampleFactor: 1},
		{WriteOffset: 3144, OutputSize: 8, DownsampleFactor: 1},
	}
	return master, slave, peers
}

func TestInlineMasterSlaveCycle(t *testing.T) {
	master, slave, peers := newHosts(t)

	masterOrch, err := orchestrator.New(orchestrator.Config{
		Driver: master, NodeID: 0, IsMaster: true, Mode: orchestrator.ModeInline,
		Peers: peers, ReadOffset: 3136, InputSize: 16, OutputSize: 8, WriteOffset: 3136,
	})
	require.NoError(t, err)

	slaveOrch, err := orchestrator.New(orchestrator.Config{
		Driver: slave, NodeID: 1, IsMaster: false, Async: true, Mode: orchestrator.ModeInline,
		Peers: peers, ReadOffset: 3136, InputSize: 16, OutputSize: 8, WriteOffset: 3144,
		MaxRetries: 50, RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)

	ok, err := masterOrch.Synchronise()
	require.NoError(t, err)
	require.True(t, ok)

	masterOut := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err = masterOrch.Execute(masterOut)
	require.NoError(t, err)

	ok, err = slaveOrch.Synchronise()
	require.NoError(t, err)
	require.True(t, ok)

	slaveOut := []byte{11, 12, 13, 14, 15, 16, 17, 18}
	in, err := slaveOrch.Execute(slaveOut)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, masterOut...), slaveOut...), in)
}

func TestNewZeroesOwnSlotAndBroadcastsInitRunTime(t *testing.T) {
	master, _, peers := newHosts(t)

	_, err := orchestrator.New(orchestrator.Config{
		Driver: master, NodeID: 0, IsMaster: true, Mode: orchestrator.ModeInline,
		Peers: peers, ReadOffset: 3136, InputSize: 16, OutputSize: 8, WriteOffset: 3136,
		StartCycle: 5, InitRunTime: 42,
	})
	require.NoError(t, err)

	payload := make([]byte, 8)
	err = master.Read(3136, payload)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), payload)

	iteration, err := master.Peek32(constants.IterationOffset)
	require.NoError(t, err)
	require.Equal(t, uint32(5), iteration)

	flag, err := master.Peek32(constants.ReadyFlagOffset)
	require.NoError(t, err)
	require.Equal(t, uint32(1), flag)
}

func TestNonMasterSyncInlineRejected(t *testing.T) {
	_, slave, peers := newHosts(t)
	_, err := orchestrator.New(orchestrator.Config{
		Driver: slave, NodeID: 1, IsMaster: false, Async: false, Mode: orchestrator.ModeInline,
		Peers: peers, ReadOffset: 3136, InputSize: 16, OutputSize: 8, WriteOffset: 3136,
	})
	require.Error(t, err)
}

type recordingCallback struct {
	cycles int
}

func (r *recordingCallback) OnCycle(input, output []byte) {
	if output != nil {
		for i := range output {
			output[i] = byte(i)
		}
	}
	if input != nil {
		r.cycles++
	}
}

func TestSpawnedMasterLoopCompletesCycles(t *testing.T) {
	master, _, peers := newHosts(t)
	cb := &recordingCallback{}

	o, err := orchestrator.New(orchestrator.Config{
		Driver: master, NodeID: 0, IsMaster: true, Mode: orchestrator.ModeSpawned,
		Peers: peers, ReadOffset: 3136, InputSize: 16, OutputSize: 8, WriteOffset: 3136,
		Period: 2 * time.Millisecond, Callback: cb,
	})
	require.NoError(t, err)

	o.Start(context.Background())
	defer o.Stop()

	require.True(t, o.WaitCycle(500*time.Millisecond))
	_, err = o.LatestInput()
	require.NoError(t, err)
}
