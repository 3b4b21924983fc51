// Package lifecycle implements the host state machine (spec.md §4.8,
// component H): Init publishes this host's layout, Idle→Run fetches and
// validates the peer table and starts the cycle orchestrator, Run→Idle
// stops it, and Teardown releases the driver.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/logging"
	"github.com/oberon-rt/rfmsync/internal/orchestrator"
	"github.com/oberon-rt/rfmsync/internal/registry"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// State is one of the four lifecycle states a host passes through.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateRunning
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Host drives one node's lifecycle over a Driver.
type Host struct {
	mu     sync.Mutex
	state  State
	driver interfaces.Driver
	nodeID uint32
	logger interfaces.Logger

	orch *orchestrator.Orchestrator
}

// New creates a Host in StateUninitialized over driver.
func New(driver interfaces.Driver, nodeID uint32) *Host {
	return &Host{driver: driver, nodeID: nodeID, logger: logging.Default()}
}

func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Host) requireState(want State) error {
	if h.state != want {
		return fmt.Errorf("lifecycle: expected state %s, got %s", want, h.state)
	}
	return nil
}

// Init publishes this host's own PeerLayout into the shared header and
// transitions Uninitialized -> Idle.
func (h *Host) Init(layout wire.PeerLayout) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireState(StateUninitialized); err != nil {
		return err
	}
	if err := registry.Publish(h.driver, h.nodeID, layout); err != nil {
		return fmt.Errorf("lifecycle: init publish: %w", err)
	}
	h.state = StateIdle
	h.logger.Debugf("lifecycle: node %d initialized", h.nodeID)
	return nil
}

// ConfigBuilder turns a fetched, contiguity-checked peer table into an
// orchestrator.Config; callers fill in the fields New's caller already
// knows (IsMaster, Mode, Async, Period, Callback, ...) around it.
type ConfigBuilder func(peers wire.PeerLayoutTable) orchestrator.Config

// Run fetches every peer's published layout, checks contiguity, builds the
// cycle orchestrator via build, starts it, and transitions Idle -> Running.
func (h *Host) Run(ctx context.Context, nHosts uint32, build ConfigBuilder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireState(StateIdle); err != nil {
		return err
	}

	peers, err := registry.Fetch(h.driver, nHosts)
	if err != nil {
		return fmt.Errorf("lifecycle: run fetch: %w", err)
	}
	if err := registry.CheckContiguity(peers); err != nil {
		return fmt.Errorf("lifecycle: run contiguity: %w", err)
	}

	cfg := build(peers)
	orch, err := orchestrator.New(cfg)
	if err != nil {
		return fmt.Errorf("lifecycle: run orchestrator: %w", err)
	}

	orch.Start(ctx)
	h.orch = orch
	h.state = StateRunning
	h.logger.Debugf("lifecycle: node %d running with %d peers", h.nodeID, len(peers))
	return nil
}

// Orchestrator returns the running cycle orchestrator, or nil outside
// StateRunning.
func (h *Host) Orchestrator() *orchestrator.Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.orch
}

// Stop halts the cycle orchestrator and transitions Running -> Idle.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.requireState(StateRunning); err != nil {
		return err
	}
	h.orch.Stop()
	h.orch = nil
	h.state = StateIdle
	h.logger.Debugf("lifecycle: node %d stopped", h.nodeID)
	return nil
}

// Teardown releases the driver handle. Valid from any state except
// already-torn-down; it stops the orchestrator first if still running.
func (h *Host) Teardown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateTornDown {
		return fmt.Errorf("lifecycle: already torn down")
	}
	if h.state == StateRunning && h.orch != nil {
		h.orch.Stop()
		h.orch = nil
	}
	err := h.driver.Close()
	h.state = StateTornDown
	h.logger.Debugf("lifecycle: node %d torn down", h.nodeID)
	return err
}
