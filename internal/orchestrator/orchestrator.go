// Package orchestrator drives the per-cycle handshake, I/O and compute hook
// (spec.md §4.6, component F): either Inline, where the caller's own thread
// walks Synchronise/Execute each cycle, or Spawned, where a background
// goroutine runs the cycle loop and the caller polls or blocks on a cycle
// semaphore.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oberon-rt/rfmsync/internal/broker"
	"github.com/oberon-rt/rfmsync/internal/diag"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/iobuf"
	"github.com/oberon-rt/rfmsync/internal/remap"
	syncproto "github.com/oberon-rt/rfmsync/internal/sync"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// Mode selects who drives the cycle loop.
type Mode int

const (
	// Inline: the caller's own goroutine calls Synchronise/Execute each
	// cycle; there is no background loop.
	ModeInline Mode = iota
	// Spawned: a background goroutine runs the cycle loop on a fixed
	// period; the caller observes results via WaitCycle/LatestInput.
	ModeSpawned
)

// ExecCallback is the user compute hook. A Spawned-mode cycle calls it
// twice: OnCycle(nil, output) with the buffer to fill for this cycle's
// output, then OnCycle(input, nil) with that cycle's scattered input.
// Required in Spawned mode (there is no caller thread to hand control back
// to); optional in Inline mode, where the caller may instead call
// Execute directly.
type ExecCallback interface {
	OnCycle(input []byte, output []byte)
}

// Config bundles everything Orchestrator needs to run one host's cycle
// loop.
type Config struct {
	Driver       interfaces.Driver
	NodeID       uint32
	IsMaster     bool
	Mode         Mode
	Async        bool
	Peers        wire.PeerLayoutTable
	ReadOffset   uint32
	InputSize    uint32
	OutputSize   uint32
	WriteOffset  uint32
	Period       time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Observer     interfaces.Observer
	Callback     ExecCallback

	// StartCycle seeds the master's cycle counter on the Idle->Run
	// transition (spec.md §4.8); ignored for slaves, which take their
	// cycle number from the master's broadcast instead.
	StartCycle int32
	// InitRunTime is the wall-clock value the master broadcasts alongside
	// StartCycle in its Idle->Run init broadcast, before the first regular
	// cycle's real elapsed time is available.
	InitRunTime int32
}

// Orchestrator runs the synchronisation-and-I/O cycle for one host.
type Orchestrator struct {
	cfg Config

	inputBroker  broker.Broker
	outputBroker broker.Broker

	readPlan  wire.ReadPlan
	readBuf   *iobuf.ReadBuffer
	writeBuf  *iobuf.WriteBuffer
	ratios    []float32
	diag      wire.Diagnostics
	srcOffset uint32

	mu          sync.Mutex
	state       wire.CycleState
	lastInput   []byte
	lastOutput  []byte
	pendingErr  error
	sem         chan struct{}
	cancel      context.CancelFunc
	runningOnce sync.Once
}

// New validates cfg and builds an Orchestrator, without starting it.
// Per spec.md §9's resolution of the non-master/non-sync open question, a
// non-master host running synchronously (Async==false) may only run in
// Spawned mode: Inline would require the caller's own thread to also poll
// readyFlag, which blocks compute indefinitely whenever the master stalls.
func New(cfg Config) (*Orchestrator, error) {
	if !cfg.IsMaster && !cfg.Async && cfg.Mode == ModeInline {
		return nil, fmt.Errorf("orchestrator: non-master synchronous hosts must run Spawned, not Inline")
	}
	if cfg.Mode == ModeSpawned && cfg.Callback == nil {
		return nil, fmt.Errorf("orchestrator: Spawned mode requires a Callback")
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 100
	}

	plan := remap.BuildReadPlan(cfg.Peers, cfg.ReadOffset, cfg.InputSize)
	inputBroker, outputBroker := broker.Select(cfg.IsMaster, cfg.Async)

	o := &Orchestrator{
		cfg:          cfg,
		inputBroker:  inputBroker,
		outputBroker: outputBroker,
		readPlan:     plan,
		readBuf:      iobuf.NewReadBuffer(plan.TotalBytes, tailSlackFor(cfg)),
		writeBuf:     iobuf.NewWriteBuffer(cfg.OutputSize),
		ratios:       diag.ComputeRatios(cfg.Peers, downsampleFactorOf(cfg.Peers, cfg.NodeID)),
		diag:         wire.NewDiagnostics(len(cfg.Peers)),
		srcOffset:    cfg.WriteOffset + cfg.NodeID*4,
		sem:          make(chan struct{}, 1),
	}
	o.state.LocalCycle = uint32(cfg.StartCycle)

	if cfg.IsMaster {
		if err := o.initRunBroadcast(); err != nil {
			return nil, fmt.Errorf("orchestrator: init run broadcast: %w", err)
		}
	}
	return o, nil
}

// initRunBroadcast is the master-only half of the Idle->Run transition
// (spec.md §4.8): it zeroes the master's own output slot, then broadcasts
// StartCycle/InitRunTime through the same MasterStep path an ordinary
// cycle uses, so a slave polling readyFlag before the first real cycle
// still observes a consistent (iteration, time) pair rather than the
// region's zero-initialized state.
func (o *Orchestrator) initRunBroadcast() error {
	zeros := make([]byte, o.cfg.OutputSize+4)
	if err := o.cfg.Driver.Write(o.srcOffset, zeros); err != nil {
		return err
	}
	return syncproto.MasterStep(o.cfg.Driver, uint32(o.cfg.StartCycle), float64(o.cfg.InitRunTime))
}

// tailSlackFor is the read buffer's tail room: 4 bytes per peer.
func tailSlackFor(cfg Config) uint32 {
	return uint32(len(cfg.Peers)) * 4
}

func downsampleFactorOf(peers wire.PeerLayoutTable, nodeID uint32) uint32 {
	if int(nodeID) < len(peers) {
		return peers[nodeID].DownsampleFactor
	}
	return 1
}

// Synchronise performs this cycle's handshake: the master publishes a new
// iteration and wall-clock time, retrying masterStep up to MaxRetries
// times within this cycle (spec.md §4.4: "No retry inside one step; the
// caller retries up to masterStepMaxRetries per cycle"); a slave reads the
// iteration currently published under readyFlag. The slave does not compare
// it with the iteration it saw last cycle, so it proceeds whenever readyFlag
// is set, whether or not the master has advanced. It returns ok==false if a
// slave exhausts its retry budget without ever reading readyFlag set
// (spec.md's SyncMissed case) or if the master exhausts its own publish retries
// (MasterStepExhausted) — in both cases the failure is absorbed here and
// the caller simply proceeds to the next cycle, never throwing upward.
func (o *Orchestrator) Synchronise() (ok bool, err error) {
	if o.cfg.IsMaster {
		o.mu.Lock()
		o.state.LocalCycle++
		cycle := o.state.LocalCycle
		o.mu.Unlock()

		now := time.Now()
		elapsed := now.Sub(startOfProcess).Seconds()

		var stepErr error
		for attempt := 0; attempt < o.cfg.MaxRetries; attempt++ {
			stepErr = syncproto.MasterStep(o.cfg.Driver, cycle, elapsed)
			if stepErr == nil {
				break
			}
		}
		if stepErr != nil {
			drift := diag.MasterSelfHealth(o.cfg.Driver, cycle)
			o.mu.Lock()
			if len(o.diag.DiagData) > 0 {
				o.diag.DiagData[0] = float32(drift)
			}
			o.mu.Unlock()
			if o.cfg.Observer != nil {
				o.cfg.Observer.ObserveMasterStepExhausted(drift)
			}
			return false, nil
		}

		o.mu.Lock()
		o.state.MasterCycle = int32(cycle)
		o.mu.Unlock()
		return true, nil
	}

	iteration, wallClock, ok, err := syncproto.TryReadIteration(o.cfg.Driver, o.cfg.MaxRetries, o.cfg.RetryBackoff)
	if err != nil {
		return false, err
	}
	if !ok {
		if o.cfg.Observer != nil {
			o.cfg.Observer.ObserveSyncMissed()
		}
		return false, nil
	}
	o.mu.Lock()
	o.state.MasterCycle = int32(iteration)
	o.state.RealTime = wallClock
	o.mu.Unlock()
	return true, nil
}

// Execute runs one cycle's I/O: it writes output (the caller's payload for
// this cycle) then reads and scatters every peer's input, updating
// diagnostics. It does not call Synchronise; Inline callers are expected to
// call Synchronise then Execute each cycle themselves.
func (o *Orchestrator) Execute(output []byte) (input []byte, err error) {
	started := time.Now()

	o.mu.Lock()
	counter := int32(o.state.OwnCycleCounter)
	o.mu.Unlock()

	if err := o.writeBuf.SetPayload(output); err != nil {
		return nil, err
	}
	o.writeBuf.SetCounter(counter)
	if err := o.outputBroker.Output(o.cfg.Driver, o.writeBuf, o.srcOffset); err != nil {
		return nil, err
	}

	external := make([]byte, o.cfg.InputSize)
	counterRead := make([]int32, len(o.cfg.Peers))
	if err := o.inputBroker.Input(o.cfg.Driver, o.readBuf, o.readPlan, o.cfg.Peers, o.cfg.ReadOffset, o.cfg.InputSize, external, counterRead); err != nil {
		return nil, err
	}

	o.mu.Lock()
	diag.Update(&o.diag, o.ratios, counter, counterRead)
	o.state.OwnCycleCounter++
	o.mu.Unlock()

	if o.cfg.Observer != nil {
		o.cfg.Observer.ObserveCycle(o.state.LocalCycle, uint64(time.Since(started)))
		for i, v := range o.diag.DiagData {
			if v > stalenessWarnThreshold || v < -stalenessWarnThreshold {
				o.cfg.Observer.ObserveStaleness(uint32(i), v)
			}
		}
	}

	return external, nil
}

const stalenessWarnThreshold = 1000

// startOfProcess anchors RealTimeBaseTicks-style wall-clock reporting; the
// master reports elapsed seconds since this point rather than epoch time,
// matching the simulated-clock domain where hosts share no wall-clock sync
// of their own.
var startOfProcess = time.Now()

// Start launches the background cycle loop in Spawned mode. It is a no-op
// in Inline mode.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.cfg.Mode != ModeSpawned {
		return
	}
	o.runningOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		o.cancel = cancel
		go o.loop(ctx)
	})
}

// Stop cancels the background cycle loop. A no-op in Inline mode or if
// Start was never called.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) loop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runCycle()
		}
	}
}

func (o *Orchestrator) runCycle() {
	ok, err := o.Synchronise()
	if err != nil {
		o.setPending(err)
		return
	}
	if !ok {
		return
	}

	o.mu.Lock()
	out := o.lastOutput
	o.mu.Unlock()
	if out == nil {
		out = make([]byte, o.cfg.OutputSize)
	}

	if o.cfg.Callback != nil {
		o.cfg.Callback.OnCycle(nil, out)
	}
	o.mu.Lock()
	o.lastOutput = out
	o.mu.Unlock()

	in, err := o.Execute(out)
	if err != nil {
		o.setPending(err)
		return
	}
	if o.cfg.Callback != nil {
		o.cfg.Callback.OnCycle(in, nil)
	}

	o.mu.Lock()
	o.lastInput = in
	o.mu.Unlock()

	o.postCompletion()
}

func (o *Orchestrator) setPending(err error) {
	o.mu.Lock()
	o.pendingErr = err
	o.mu.Unlock()
}

// postCompletion signals one completed cycle to WaitCycle without
// blocking: if the single-slot semaphore is already full (the caller
// hasn't drained the previous signal) the new one is simply dropped, since
// WaitCycle only ever needs to know "a cycle completed since I last
// looked", not how many.
func (o *Orchestrator) postCompletion() {
	select {
	case o.sem <- struct{}{}:
	default:
	}
}

// WaitCycle blocks until a Spawned-mode cycle completes or timeout
// elapses, returning false on timeout.
func (o *Orchestrator) WaitCycle(timeout time.Duration) bool {
	select {
	case <-o.sem:
		return true
	case <-time.After(timeout):
		return false
	}
}

// LatestInput returns the most recently scattered input buffer from a
// Spawned-mode cycle, and any error from the most recent cycle attempt.
func (o *Orchestrator) LatestInput() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastInput, o.pendingErr
}

// SetOutput stages the payload a Spawned-mode cycle will write next, for
// callers that update output outside of an ExecCallback.
func (o *Orchestrator) SetOutput(payload []byte) {
	o.mu.Lock()
	o.lastOutput = payload
	o.mu.Unlock()
}

// Diagnostics returns a snapshot of this host's current diagnostics.
func (o *Orchestrator) Diagnostics() wire.Diagnostics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.diag
}

// State returns a snapshot of this host's cycle-tracking state, for
// callers exposing the own-cycle-counter/own-time/real-time signals.
func (o *Orchestrator) State() wire.CycleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastOutput returns the payload most recently staged via SetOutput or
// written by a Spawned-mode ExecCallback.
func (o *Orchestrator) LastOutput() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastOutput
}
