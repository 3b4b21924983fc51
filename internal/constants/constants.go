// Package constants holds the wire layout and timing constants shared
// across the synchronisation core.
package constants

import "time"

// Shared-memory header layout. All offsets are byte offsets into the RFM
// region and all multi-byte fields are little-endian.
const (
	// IterationOffset is the byte offset of the 32-bit global iteration counter.
	IterationOffset = 0
	// TimeOffset is the byte offset of the 32-bit global wall-clock time.
	TimeOffset = 4
	// ReadyFlagOffset is the byte offset of the single-byte seq-lock flag.
	ReadyFlagOffset = 12

	// PeerLayoutBase is the byte offset of the first PeerLayout record.
	PeerLayoutBase = 64
	// PeerLayoutSize is the encoded size in bytes of one PeerLayout record.
	PeerLayoutSize = 12
	// MaxHosts is the maximum number of PeerLayout records the header can hold.
	MaxHosts = 256

	// HeaderSize is the first byte offset available for per-host user data.
	// Every Config.ReadOffset/WriteOffset must be >= this.
	HeaderSize = PeerLayoutBase + MaxHosts*PeerLayoutSize

	// CounterWordSize is the width in bytes of a per-host cycle counter
	// appended after each host's output payload.
	CounterWordSize = 4
)

// Default configuration values, mirrored from the original configuration
// syntax (ExecutionMode, MasterStepMaxRetries, TimeOut, ...).
const (
	DefaultMasterStepMaxRetries = 100
	DefaultDownSampleFactor     = 1
	DefaultTimeoutMicros        = 1_000_000 // 1s

	// MasterStaleSentinel is written to diagData[0] when a master step has
	// exhausted its retry budget AND the fallback iteration probe also fails.
	MasterStaleSentinel = -12345

	// TailSlackTight is the minimum per-direction tail room (4 bytes per
	// possible peer counter word) required behind a heap-allocated buffer.
	TailSlackTight = MaxHosts * CounterWordSize
	// TailSlackConservative is the historical, undocumented tail room that
	// Config.UseConservativeTailSlack names; cmd/rfm-sim uses it to size
	// its simulated region.
	TailSlackConservative = 1024
)

// Worker-thread timing.
const (
	// PollBackoff is how long the worker sleeps between unsuccessful slave
	// iteration polls, to avoid pegging a core at 100% during a stall.
	PollBackoff = 1 * time.Millisecond

	// SemaphoreIdleTimeout bounds how long Synchronise waits on the cycle
	// semaphore once the worker is no longer Running (fail-fast shutdown).
	SemaphoreIdleTimeout = 1000 * time.Millisecond
)
