package rfmsync

import (
	"time"

	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/orchestrator"
)

// ExecMode selects who drives this host's cycle loop, mirroring
// internal/orchestrator.Mode one layer up so callers never need to import
// an internal package to build a Config.
type ExecMode int

const (
	ModeInline ExecMode = iota
	ModeSpawned
)

func (m ExecMode) toOrchestrator() orchestrator.Mode {
	if m == ModeSpawned {
		return orchestrator.ModeSpawned
	}
	return orchestrator.ModeInline
}

// Config is the immutable set of post-init parameters for one host,
// exactly as enumerated in spec.md §3/§6. It is frozen once Validate
// succeeds; DataSource never mutates it after New.
type Config struct {
	NodeID        uint32
	IsMaster      bool
	NumberOfHosts uint32

	ReadOffset  uint32
	WriteOffset uint32
	InputSize   uint32
	OutputSize  uint32

	DownsampleFactor uint32

	StartCycle  int32
	CycleBudget int32 // slaves only; not read by DataSource, so no value bounds the cycle count

	TimeOut              time.Duration
	InitRunTime          int32
	MasterStepMaxRetries int

	DMAEnabled        bool
	DMAAwait          bool
	DMAThreshold      uint32
	DMABufferSize     uint32
	DMABufferPhysAddr uint64

	ExecMode ExecMode
	Async    bool
	CPUMask  uint32

	// Period is the cycle cadence under ModeSpawned; ignored under
	// ModeInline, where the caller drives cycles itself.
	Period time.Duration

	// UseConservativeTailSlack names the historical 1024-byte tail room as
	// an alternative to the tight 4*nHosts form; defaults to false. It is
	// not passed to the orchestrator, whose read buffer always uses the
	// tight 4*nHosts tail room whatever this field holds.
	UseConservativeTailSlack bool
}

// DefaultConfig returns a Config with spec-mandated defaults filled in.
// NodeID/IsMaster/NumberOfHosts/offsets/sizes are caller-specific and left
// zero; callers must set them before Validate.
func DefaultConfig() Config {
	return Config{
		DownsampleFactor:     constants.DefaultDownSampleFactor,
		MasterStepMaxRetries: constants.DefaultMasterStepMaxRetries,
		TimeOut:              constants.DefaultTimeoutMicros * time.Microsecond,
		ExecMode:             ModeInline,
		Period:               time.Millisecond,
	}
}

// Validate checks every field spec.md §6 constrains, returning a
// *Error with ErrCodeConfiguration describing the first violation found.
func (c Config) Validate() error {
	if c.ReadOffset < constants.HeaderSize {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"ReadOffset must be >= HeaderSize")
	}
	if c.WriteOffset < constants.HeaderSize {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"WriteOffset must be >= HeaderSize")
	}
	if c.NumberOfHosts == 0 || c.NumberOfHosts > constants.MaxHosts {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"NumberOfHosts must be in [1, MaxHosts]")
	}
	if c.IsMaster && c.NodeID != 0 {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"NodeID must be 0 when IsMaster is true")
	}
	if !c.IsMaster && (c.NodeID == 0 || c.NodeID >= c.NumberOfHosts) {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"slave NodeID must be in [1, NumberOfHosts)")
	}
	if c.DownsampleFactor < 1 {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"DownsampleFactor must be >= 1")
	}
	if !c.IsMaster && !c.Async && c.ExecMode == ModeInline {
		return NewError("Validate", c.NodeID, ErrCodeConfiguration,
			"non-master synchronous hosts must use ModeSpawned")
	}
	if c.DMAEnabled {
		half := c.DMABufferSize / 2
		if c.InputSize > half || c.OutputSize > half {
			return NewError("Validate", c.NodeID, ErrCodeConfiguration,
				"InputSize and OutputSize must each be <= DMABufferSize/2 when DMAEnabled")
		}
	}
	return nil
}
