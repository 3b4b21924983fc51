// Package rfmsync implements a cross-host synchronisation plug-in over a
// shared reflective-memory (RFM) region: a master host broadcasts a cycle
// counter and wall-clock time, every host publishes a contiguous write
// window into a shared header, and each cycle every host writes its own
// payload and scatters its peers' payloads into a typed input view.
package rfmsync

import (
	"context"
	"errors"
	"sync"

	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/lifecycle"
	"github.com/oberon-rt/rfmsync/internal/orchestrator"
	"github.com/oberon-rt/rfmsync/internal/registry"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// ExecCallback is the per-cycle compute hook: OnCycle(nil, output) asks
// the caller to fill this cycle's output payload, OnCycle(input, nil)
// hands back the scattered result of this cycle's read.
type ExecCallback = orchestrator.ExecCallback

// SignalBuffers is a snapshot of the seven signals spec.md §6 exposes to
// the host framework, numbered in its declared order.
type SignalBuffers struct {
	OwnCycleCounter   int32     // (0)
	OwnTime           float64   // (1)
	Input             []byte    // (2)
	Output            []byte    // (3)
	RealTime          float64   // (4)
	PeerCycleCounters []int32   // (5)
	PeerDiagnostics   []float32 // (6)
}

// DataSource drives one host's participation in the cluster: Init
// publishes its write layout, Run starts the cycle orchestrator once every
// peer has published, Stop/Resync/Teardown manage the rest of the
// lifecycle (spec.md §4.8, component H).
type DataSource struct {
	cfg    Config
	driver interfaces.Driver
	host   *lifecycle.Host

	metrics  *Metrics
	observer interfaces.Observer

	mu       sync.Mutex
	ctx      context.Context
	callback ExecCallback
}

// New validates cfg and builds a DataSource over driver. The returned
// DataSource starts in lifecycle.StateUninitialized; call Init then Run.
func New(driver interfaces.Driver, cfg Config) (*DataSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics := NewMetrics()
	return &DataSource{
		cfg:      cfg,
		driver:   driver,
		host:     lifecycle.New(driver, cfg.NodeID),
		metrics:  metrics,
		observer: NewMetricsObserver(metrics),
	}, nil
}

// Metrics returns this DataSource's telemetry sink.
func (ds *DataSource) Metrics() *Metrics {
	return ds.metrics
}

// SetObserver overrides the default Metrics-backed Observer, e.g. with a
// NoOpObserver or an external collector.
func (ds *DataSource) SetObserver(o interfaces.Observer) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.observer = o
}

// Init publishes this host's write layout into the shared header.
func (ds *DataSource) Init() error {
	layout := wire.PeerLayout{
		WriteOffset:      ds.cfg.WriteOffset,
		OutputSize:       ds.cfg.OutputSize,
		DownsampleFactor: ds.cfg.DownsampleFactor,
	}
	if err := ds.host.Init(layout); err != nil {
		return WrapError("Init", ds.cfg.NodeID, ErrCodeLayout, err)
	}
	return nil
}

// Run fetches every peer's published layout, builds the cycle
// orchestrator and starts it. callback is invoked every cycle in
// ModeSpawned (see ExecCallback); it may be nil in ModeInline, where the caller drives cycles
// directly via Orchestrator().Synchronise/Execute.
func (ds *DataSource) Run(ctx context.Context, callback ExecCallback) error {
	ds.mu.Lock()
	ds.ctx = ctx
	ds.callback = callback
	observer := ds.observer
	ds.mu.Unlock()

	build := func(peers wire.PeerLayoutTable) orchestrator.Config {
		return orchestrator.Config{
			Driver:       ds.driver,
			NodeID:       ds.cfg.NodeID,
			IsMaster:     ds.cfg.IsMaster,
			Mode:         ds.cfg.ExecMode.toOrchestrator(),
			Async:        ds.cfg.Async,
			Peers:        peers,
			ReadOffset:   ds.cfg.ReadOffset,
			InputSize:    ds.cfg.InputSize,
			OutputSize:   ds.cfg.OutputSize,
			WriteOffset:  ds.cfg.WriteOffset,
			Period:       ds.cfg.Period,
			MaxRetries:   ds.cfg.MasterStepMaxRetries,
			RetryBackoff: constants.PollBackoff,
			Observer:     observer,
			Callback:     callback,
			StartCycle:   ds.cfg.StartCycle,
			InitRunTime:  ds.cfg.InitRunTime,
		}
	}

	if err := ds.host.Run(ctx, ds.cfg.NumberOfHosts, build); err != nil {
		code := ErrCodeConfiguration
		var cerr *registry.ContiguityError
		if errors.As(err, &cerr) {
			code = ErrCodeLayout
		}
		return WrapError("Run", ds.cfg.NodeID, code, err)
	}
	return nil
}

// Stop halts the cycle orchestrator without releasing the driver.
func (ds *DataSource) Stop() error {
	if err := ds.host.Stop(); err != nil {
		return WrapError("Stop", ds.cfg.NodeID, ErrCodeConfiguration, err)
	}
	return nil
}

// Resync stops the cycle orchestrator, if running, and restarts it: every
// peer's layout is re-fetched and the read plan rebuilt from scratch. This
// is the Go-native rendering of spec §6's SettingDiagnosticProtocol
// control operation.
func (ds *DataSource) Resync() error {
	ds.mu.Lock()
	ctx := ds.ctx
	callback := ds.callback
	ds.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if ds.host.State() == lifecycle.StateRunning {
		if err := ds.Stop(); err != nil {
			return err
		}
	}
	return ds.Run(ctx, callback)
}

// Teardown stops the orchestrator if running and releases the driver.
func (ds *DataSource) Teardown() error {
	if err := ds.host.Teardown(); err != nil {
		return WrapError("Teardown", ds.cfg.NodeID, ErrCodeDevice, err)
	}
	return nil
}

// Orchestrator exposes the underlying cycle orchestrator for Inline
// callers that drive Synchronise/Execute themselves.
func (ds *DataSource) Orchestrator() *orchestrator.Orchestrator {
	return ds.host.Orchestrator()
}

// SignalBuffers returns a snapshot of the seven signals spec.md §6
// exposes to the host framework. It returns a ConfigurationError if
// called before Run.
func (ds *DataSource) SignalBuffers() (SignalBuffers, error) {
	orch := ds.host.Orchestrator()
	if orch == nil {
		return SignalBuffers{}, NewError("SignalBuffers", ds.cfg.NodeID, ErrCodeConfiguration, "not running")
	}
	state := orch.State()
	diag := orch.Diagnostics()
	input, _ := orch.LatestInput()

	return SignalBuffers{
		OwnCycleCounter:   state.OwnCycleCounter,
		OwnTime:           state.RealTime,
		Input:             input,
		Output:            orch.LastOutput(),
		RealTime:          state.RealTime,
		PeerCycleCounters: diag.CounterRead,
		PeerDiagnostics:   diag.DiagData,
	}, nil
}
