// Package broker implements the per-cycle I/O brokers (spec.md §4.6/§4.9,
// component I): the four ways a cycle's input read and output write can be
// carried out, selected by whether this host is master or slave and
// whether it runs in synchronous or asynchronous (DMA fire-and-forget)
// mode.
package broker

import (
	"sync"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/iobuf"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// Broker performs one cycle's input read and output write against a
// Driver. Every implementation satisfies this same surface so the
// orchestrator never branches on which broker it holds.
type Broker interface {
	Input(d interfaces.Driver, rb *iobuf.ReadBuffer, plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error
	Output(d interfaces.Driver, wb *iobuf.WriteBuffer, srcOffset uint32) error
}

// PlainBroker issues a blocking programmed-I/O read and write with no extra
// synchronization beyond what the driver itself provides. Used when this
// host's own cycle invocations are already serialized by the caller (the
// common case for a slave driven purely by its own Inline Execute calls).
type PlainBroker struct{}

func (PlainBroker) Input(d interfaces.Driver, rb *iobuf.ReadBuffer, plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error {
	if err := rb.Fill(d, plan); err != nil {
		return err
	}
	return rb.Scatter(plan, peers, readOffset, inputSize, external, counterRead)
}

func (PlainBroker) Output(d interfaces.Driver, wb *iobuf.WriteBuffer, srcOffset uint32) error {
	return wb.Flush(d, srcOffset)
}

// SynchronisedBroker wraps PlainBroker's transfers in a shared mutex, for
// hosts whose cycle may be invoked concurrently from more than one
// goroutine (a Spawned worker racing a caller-thread ControlOps call, or a
// master whose MasterStep and readback share hardware state within one
// cycle). The mutex is shared across a host's input and output brokers so
// a read and a write for the same cycle never interleave with another
// cycle's read or write.
type SynchronisedBroker struct {
	mu    *sync.Mutex
	plain PlainBroker
}

// NewSynchronisedPair returns an input/output broker pair sharing one
// mutex, for wiring into the orchestrator's per-host broker slots.
func NewSynchronisedPair() (*SynchronisedBroker, *SynchronisedBroker) {
	mu := &sync.Mutex{}
	return &SynchronisedBroker{mu: mu}, &SynchronisedBroker{mu: mu}
}

func (b *SynchronisedBroker) Input(d interfaces.Driver, rb *iobuf.ReadBuffer, plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plain.Input(d, rb, plan, peers, readOffset, inputSize, external, counterRead)
}

func (b *SynchronisedBroker) Output(d interfaces.Driver, wb *iobuf.WriteBuffer, srcOffset uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plain.Output(d, wb, srcOffset)
}

// AsyncOutputBroker issues the output write as a fire-and-forget DMA
// transfer (await=false) when dmaEnabled, falling back to PlainBroker's
// blocking write otherwise. Input is always a blocking programmed-I/O
// read: a stale input is a missed cycle (observable), but a cycle that
// never learns its own write completed is silently wrong, so only the
// write side goes fire-and-forget.
type AsyncOutputBroker struct {
	plain      PlainBroker
	dmaEnabled bool
}

// NewAsyncOutputBroker returns an AsyncOutputBroker. Select always passes
// dmaEnabled=true, so the async slave row takes the DMA path whatever
// Config.DMAEnabled or Config.DMAThreshold hold.
func NewAsyncOutputBroker(dmaEnabled bool) *AsyncOutputBroker {
	return &AsyncOutputBroker{dmaEnabled: dmaEnabled}
}

func (a *AsyncOutputBroker) Input(d interfaces.Driver, rb *iobuf.ReadBuffer, plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error {
	return a.plain.Input(d, rb, plan, peers, readOffset, inputSize, external, counterRead)
}

func (a *AsyncOutputBroker) Output(d interfaces.Driver, wb *iobuf.WriteBuffer, srcOffset uint32) error {
	if !a.dmaEnabled {
		return a.plain.Output(d, wb, srcOffset)
	}
	return d.DMAWrite(srcOffset, wb.Bytes(), false)
}

// Select implements the master/slave × sync/async broker-selection table
// (spec.md §4.6):
//
//   - master, sync or async: SynchronisedBroker pair. The master's
//     MasterStep and its own self-health readback (spec.md §4.5) touch the
//     same header words every cycle regardless of mode, and may be invoked
//     from both a Spawned worker goroutine and a caller-thread ControlOps
//     call, so they always need the shared mutex.
//   - slave, sync: PlainBroker pair — a slave's cycle is already serialized
//     by its own Inline/Spawned invocation discipline.
//   - slave, async: PlainBroker input, AsyncOutputBroker output — only the
//     write side benefits from not blocking on DMA completion.
func Select(isMaster, async bool) (input, output Broker) {
	if isMaster {
		in, out := NewSynchronisedPair()
		return in, out
	}
	if async {
		return PlainBroker{}, NewAsyncOutputBroker(true)
	}
	return PlainBroker{}, PlainBroker{}
}
