// Package wire defines the on-the-wire layout of the RFM shared region and
// the in-process entities derived from it (spec.md §3 "Data model").
package wire

import (
	"encoding/binary"

	"github.com/oberon-rt/rfmsync/internal/constants"
)

// PeerLayout is one 12-byte record of the PeerLayout array starting at
// constants.PeerLayoutBase, indexed by nodeID.
type PeerLayout struct {
	WriteOffset      uint32
	OutputSize       uint32
	DownsampleFactor uint32
}

// Encode writes the little-endian 12-byte wire form of p into dst.
func (p PeerLayout) Encode(dst []byte) {
	_ = dst[:constants.PeerLayoutSize] // bounds check hint
	binary.LittleEndian.PutUint32(dst[0:4], p.WriteOffset)
	binary.LittleEndian.PutUint32(dst[4:8], p.OutputSize)
	binary.LittleEndian.PutUint32(dst[8:12], p.DownsampleFactor)
}

// DecodePeerLayout parses a 12-byte little-endian record.
func DecodePeerLayout(src []byte) PeerLayout {
	_ = src[:constants.PeerLayoutSize]
	return PeerLayout{
		WriteOffset:      binary.LittleEndian.Uint32(src[0:4]),
		OutputSize:       binary.LittleEndian.Uint32(src[4:8]),
		DownsampleFactor: binary.LittleEndian.Uint32(src[8:12]),
	}
}

// PeerLayoutTable holds every host's published layout, indexed by nodeID.
// Populated exactly once, on transition into Run.
type PeerLayoutTable []PeerLayout

// OffsetOf returns the byte offset of nodeID's PeerLayout record within the
// system header.
func OffsetOf(nodeID uint32) uint32 {
	return constants.PeerLayoutBase + nodeID*constants.PeerLayoutSize
}

// PerPeerRead describes one peer's contribution to a bulk read: the byte
// offset within the RFM region to start at, and the payload-only byte
// count (its trailing 4-byte counter always immediately follows in the
// bulk-read buffer; see the remap package).
type PerPeerRead struct {
	SrcOffset uint32
	Size      uint32
}

// ReadPlan is the precomputed scatter-gather description for one host's
// per-cycle bulk input read (spec.md §4.3). FirstPeer == -1 means "nothing
// to read".
type ReadPlan struct {
	FirstPeer  int32
	LastPeer   int32
	PerPeer    map[uint32]PerPeerRead
	TotalBytes uint32
}

// NoRead is the zero-value "read nothing" plan.
func NoRead() ReadPlan {
	return ReadPlan{FirstPeer: -1, LastPeer: -1, PerPeer: map[uint32]PerPeerRead{}}
}

// CycleState is the per-host mutable cycle-tracking state (spec.md §3).
type CycleState struct {
	LocalCycle        uint32
	MasterCycle       int32
	LocalCounter      uint32
	OwnCycleCounter   int32
	RealTime          float64
	RealTimeBaseTicks uint64
}

// Diagnostics is the per-host diagnostic state (spec.md §3 and §4.5).
type Diagnostics struct {
	CounterRead []int32
	DiagData    []float32
	DiagRatio   []float32
}

// NewDiagnostics allocates a Diagnostics sized for nHosts peers.
func NewDiagnostics(nHosts int) Diagnostics {
	return Diagnostics{
		CounterRead: make([]int32, nHosts),
		DiagData:    make([]float32, nHosts),
		DiagRatio:   make([]float32, nHosts),
	}
}
