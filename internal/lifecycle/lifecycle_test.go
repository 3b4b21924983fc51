package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/lifecycle"
	"github.com/oberon-rt/rfmsync/internal/orchestrator"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func TestLifecycleHappyPath(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize + 4096)
	master := simrfm.Attach(region, 0)
	slave := simrfm.Attach(region, 1)

	masterHost := lifecycle.New(master, 0)
	slaveHost := lifecycle.New(slave, 1)

	require.NoError(t, masterHost.Init(wire.PeerLayout{WriteOffset: 3136, OutputSize: 8, DownsampleFactor: 1}))
	require.NoError(t, slaveHost.Init(wire.PeerLayout{WriteOffset: 3144, OutputSize: 8, DownsampleFactor: 1}))

	build := func(nodeID uint32, isMaster bool) lifecycle.ConfigBuilder {
		return func(peers wire.PeerLayoutTable) orchestrator.Config {
			return orchestrator.Config{
				Driver:      master,
				NodeID:      nodeID,
				IsMaster:    isMaster,
				Mode:        orchestrator.ModeSpawned,
				Peers:       peers,
				ReadOffset:  3136,
				InputSize:   16,
				OutputSize:  8,
				WriteOffset: 3136,
				Period:      2 * time.Millisecond,
				Callback:    noopCallback{},
			}
		}
	}

	require.Equal(t, lifecycle.StateIdle, masterHost.State())
	require.NoError(t, masterHost.Run(context.Background(), 2, build(0, true)))
	require.Equal(t, lifecycle.StateRunning, masterHost.State())
	require.NotNil(t, masterHost.Orchestrator())

	require.NoError(t, masterHost.Stop())
	require.Equal(t, lifecycle.StateIdle, masterHost.State())

	require.NoError(t, masterHost.Teardown())
	require.Equal(t, lifecycle.StateTornDown, masterHost.State())
	require.Error(t, masterHost.Teardown())
}

func TestRunRequiresIdle(t *testing.T) {
	region := simrfm.NewRegion(constants.HeaderSize + 4096)
	master := simrfm.Attach(region, 0)
	host := lifecycle.New(master, 0)

	err := host.Run(context.Background(), 1, func(peers wire.PeerLayoutTable) orchestrator.Config {
		return orchestrator.Config{}
	})
	require.Error(t, err)
}

type noopCallback struct{}

func (noopCallback) OnCycle(input, output []byte) {}
