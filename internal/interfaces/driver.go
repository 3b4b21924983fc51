// Package interfaces provides internal interface definitions shared by the
// synchronisation core. Kept separate from the root package to avoid an
// import cycle between the public API and the internal packages that
// implement it.
package interfaces

// Driver is the narrow capability set the core requires from an RFM card
// handle. It never interprets the handle's internals; every higher-level
// component (registry, remap planner, sync protocol, diagnostics) is built
// purely on this surface.
type Driver interface {
	// Close releases the handle.
	Close() error

	// Peek8/Peek32 perform a random-access read of the given width at
	// offset, via programmed I/O (no DMA).
	Peek8(offset uint32) (uint8, error)
	Peek32(offset uint32) (uint32, error)

	// Poke8/Poke32 perform a random-access write of the given width at
	// offset, via programmed I/O (no DMA).
	Poke8(offset uint32, value uint8) error
	Poke32(offset uint32, value uint32) error

	// Read/Write perform a bulk programmed-I/O transfer of len(dst)/len(src)
	// bytes at offset.
	Read(offset uint32, dst []byte) error
	Write(offset uint32, src []byte) error

	// NodeID reports the node identity the driver was opened against.
	NodeID() (uint32, error)

	// MapDMA maps physAddr..physAddr+length as a DMA-visible region and
	// returns an opaque handle to it. UnmapDMA releases the mapping.
	MapDMA(physAddr uint64, length uint32) (DMARegion, error)
	UnmapDMA(DMARegion) error

	// SetDMAThreshold configures the transfer size above which the driver
	// should prefer DMA over programmed I/O.
	SetDMAThreshold(bytes uint32) error

	// DMARead/DMAWrite transfer len(dst)/len(src) bytes at offset via DMA.
	// When await is true the call blocks until the transfer completes;
	// when false it is fire-and-forget and completion is not observable.
	DMARead(offset uint32, dst []byte, await bool) error
	DMAWrite(offset uint32, src []byte, await bool) error
}

// DMARegion is an opaque mapped DMA region. Implementations may embed a
// pointer, a file descriptor, or both; the core never dereferences it.
type DMARegion interface {
	// Bytes exposes the mapped region as a byte slice for typed views.
	Bytes() []byte
}

// Logger is the minimal logging surface components depend on, matching
// internal/logging.Logger's Printf-style methods.
type Logger interface {
	Debugf(format string, args ...any)
	Printf(format string, args ...any)
}

// Observer receives ambient telemetry from the cycle-driving components.
// Implementations must be safe for concurrent use: methods are called from
// both the caller thread and, in Spawned mode, the worker thread.
type Observer interface {
	ObserveCycle(localCycle uint32, latencyNs uint64)
	ObserveSyncMissed()
	ObserveTornRead()
	ObserveMasterStepExhausted(drift int32)
	ObserveStaleness(nodeID uint32, diagData float32)
}
