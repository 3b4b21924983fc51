// Package iobuf implements the double-buffered cycle I/O (spec.md §4.7 and
// §9, component G): a write-side buffer holding this host's payload plus
// its trailing cycle counter, and a read-side buffer sized for the bulk
// scatter-gather read described by a remap.ReadPlan.
package iobuf

import (
	"encoding/binary"
	"fmt"

	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/remap"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// WriteBuffer holds this host's outgoing payload plus its own trailing
// cycle counter, laid out exactly as it will appear on the wire.
type WriteBuffer struct {
	outputSize uint32
	data       []byte
}

// NewWriteBuffer allocates a WriteBuffer for a payload of outputSize bytes.
func NewWriteBuffer(outputSize uint32) *WriteBuffer {
	return &WriteBuffer{
		outputSize: outputSize,
		data:       make([]byte, outputSize+constants.CounterWordSize),
	}
}

// SetPayload copies src (which must be exactly outputSize bytes) into the
// buffer, leaving the counter slot untouched.
func (w *WriteBuffer) SetPayload(src []byte) error {
	if uint32(len(src)) != w.outputSize {
		return fmt.Errorf("iobuf: payload size %d != configured outputSize %d", len(src), w.outputSize)
	}
	copy(w.data[:w.outputSize], src)
	return nil
}

// SetCounter stamps the trailing cycle counter.
func (w *WriteBuffer) SetCounter(counter int32) {
	binary.LittleEndian.PutUint32(w.data[w.outputSize:], uint32(counter))
}

// Flush writes the whole payload+counter buffer to the driver at srcOffset
// (this host's own shifted write address, writeOffset+nodeID*4).
func (w *WriteBuffer) Flush(d interfaces.Driver, srcOffset uint32) error {
	return d.Write(srcOffset, w.data)
}

// Bytes exposes the whole payload+counter buffer, for brokers that issue
// the write themselves (e.g. AsyncOutputBroker's DMA path).
func (w *WriteBuffer) Bytes() []byte {
	return w.data
}

// ReadBuffer holds the bulk scatter-gather read for one cycle. Its backing
// array is sized to the largest plan seen so far plus a tail-slack margin
// (spec.md §9), so steady-state cycles never reallocate even as the peer
// set's layout shifts slightly cycle to cycle.
type ReadBuffer struct {
	data      []byte
	tailSlack uint32
}

// NewReadBuffer allocates a ReadBuffer sized for capacityHint bytes plus
// tailSlack bytes of headroom (the orchestrator passes 4 bytes per peer).
func NewReadBuffer(capacityHint, tailSlack uint32) *ReadBuffer {
	return &ReadBuffer{
		data:      make([]byte, capacityHint+tailSlack),
		tailSlack: tailSlack,
	}
}

func (r *ReadBuffer) ensure(n uint32) {
	if uint32(len(r.data)) >= n {
		return
	}
	r.data = make([]byte, n+r.tailSlack)
}

// Fill performs the bulk read described by plan into the ReadBuffer,
// growing its backing array first if plan.TotalBytes exceeds current
// capacity.
func (r *ReadBuffer) Fill(d interfaces.Driver, plan wire.ReadPlan) error {
	if plan.FirstPeer == -1 {
		return nil
	}
	r.ensure(plan.TotalBytes)
	srcOffset := plan.PerPeer[uint32(plan.FirstPeer)].SrcOffset
	return d.Read(srcOffset, r.data[:plan.TotalBytes])
}

// Scatter distributes the filled buffer's payload bytes into external and
// extracts each peer's trailing counter into counterRead, delegating to
// remap.Scatter.
func (r *ReadBuffer) Scatter(plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error {
	if plan.FirstPeer == -1 {
		return nil
	}
	return remap.Scatter(r.data[:plan.TotalBytes], plan, peers, readOffset, inputSize, external, counterRead)
}
