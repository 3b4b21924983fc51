// Package simrfm provides an in-memory simulated RFM card. It implements
// internal/interfaces.Driver directly over a byte slice, with sharded
// locking so multiple simulated hosts (or a caller thread and a worker
// thread within one host) can exercise it concurrently the way go-ublk's
// backend.Memory simulates a block device backend.
//
// Two or more simrfm.Card handles can share the same backing region via
// Attach, modeling a single RFM network shared by several hosts in one
// process — the harness used by cmd/rfm-sim and the package's own tests.
package simrfm

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
)

// ShardSize is the size of each locking shard. 4KB keeps lock overhead low
// for a region whose header traffic is tiny (single words) and whose user
// data traffic is a handful of contiguous windows per cycle.
const ShardSize = 4 * 1024

// Region is the shared backing memory for a simulated RFM network. Multiple
// Card handles (one per simulated host) Attach to the same Region.
type Region struct {
	data   []byte
	shards []sync.RWMutex
}

// NewRegion allocates a zeroed Region of the given size.
func NewRegion(size uint32) *Region {
	numShards := (int(size) + ShardSize - 1) / ShardSize
	if numShards == 0 {
		numShards = 1
	}
	return &Region{
		data:   make([]byte, size),
		shards: make([]sync.RWMutex, numShards),
	}
}

func (r *Region) shardRange(off, length uint32) (start, end int) {
	start = int(off) / ShardSize
	end = int(off+length-1) / ShardSize
	if end >= len(r.shards) {
		end = len(r.shards) - 1
	}
	return start, end
}

func (r *Region) lockRange(off, length uint32, write bool) {
	start, end := r.shardRange(off, length)
	for i := start; i <= end; i++ {
		if write {
			r.shards[i].Lock()
		} else {
			r.shards[i].RLock()
		}
	}
}

func (r *Region) unlockRange(off, length uint32, write bool) {
	start, end := r.shardRange(off, length)
	for i := start; i <= end; i++ {
		if write {
			r.shards[i].Unlock()
		} else {
			r.shards[i].RUnlock()
		}
	}
}

// Card is one host's handle onto a shared Region, implementing
// internal/interfaces.Driver. Its MapDMA returns a separate DMARegion
// value over an anonymous byte slice.
type Card struct {
	region      *Region
	nodeID      uint32
	dmaThresh   uint32
	dmaBuf      []byte
	dmaPhysBase uint64
}

// Attach creates a Card bound to nodeID over the given Region.
func Attach(region *Region, nodeID uint32) *Card {
	return &Card{region: region, nodeID: nodeID}
}

// New allocates a fresh single-host Region of the given size and attaches
// nodeID to it — convenient for single-host unit tests that don't need a
// shared cluster.
func New(size uint32, nodeID uint32) *Card {
	return Attach(NewRegion(size), nodeID)
}

func (c *Card) Close() error { return nil }

func (c *Card) Peek8(offset uint32) (uint8, error) {
	c.region.lockRange(offset, 1, false)
	defer c.region.unlockRange(offset, 1, false)
	if err := c.bounds(offset, 1); err != nil {
		return 0, err
	}
	return c.region.data[offset], nil
}

func (c *Card) Peek32(offset uint32) (uint32, error) {
	c.region.lockRange(offset, 4, false)
	defer c.region.unlockRange(offset, 4, false)
	if err := c.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.region.data[offset : offset+4]), nil
}

func (c *Card) Poke8(offset uint32, value uint8) error {
	c.region.lockRange(offset, 1, true)
	defer c.region.unlockRange(offset, 1, true)
	if err := c.bounds(offset, 1); err != nil {
		return err
	}
	c.region.data[offset] = value
	return nil
}

func (c *Card) Poke32(offset uint32, value uint32) error {
	c.region.lockRange(offset, 4, true)
	defer c.region.unlockRange(offset, 4, true)
	if err := c.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(c.region.data[offset:offset+4], value)
	return nil
}

func (c *Card) Read(offset uint32, dst []byte) error {
	n := uint32(len(dst))
	if n == 0 {
		return nil
	}
	c.region.lockRange(offset, n, false)
	defer c.region.unlockRange(offset, n, false)
	if err := c.bounds(offset, n); err != nil {
		return err
	}
	copy(dst, c.region.data[offset:offset+n])
	return nil
}

func (c *Card) Write(offset uint32, src []byte) error {
	n := uint32(len(src))
	if n == 0 {
		return nil
	}
	c.region.lockRange(offset, n, true)
	defer c.region.unlockRange(offset, n, true)
	if err := c.bounds(offset, n); err != nil {
		return err
	}
	copy(c.region.data[offset:offset+n], src)
	return nil
}

func (c *Card) NodeID() (uint32, error) { return c.nodeID, nil }

func (c *Card) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(c.region.data)) {
		return fmt.Errorf("simrfm: access [%d,%d) out of range (region size %d)", offset, offset+length, len(c.region.data))
	}
	return nil
}

// dmaRegion is the DMARegion returned by MapDMA: a plain byte-slice view.
type dmaRegion struct{ buf []byte }

func (d *dmaRegion) Bytes() []byte { return d.buf }

// MapDMA simulates mapping a kernel-reserved DMA buffer: it allocates an
// anonymous Go byte slice of the requested length. physAddr is stored on
// the Card and not used otherwise — this is not a real physical mapping.
func (c *Card) MapDMA(physAddr uint64, length uint32) (interfaces.DMARegion, error) {
	c.dmaBuf = make([]byte, length)
	c.dmaPhysBase = physAddr
	return &dmaRegion{buf: c.dmaBuf}, nil
}

func (c *Card) UnmapDMA(interfaces.DMARegion) error {
	c.dmaBuf = nil
	return nil
}

func (c *Card) SetDMAThreshold(bytes uint32) error {
	c.dmaThresh = bytes
	return nil
}

// DMARead/DMAWrite behave identically to Read/Write in simulation: DMA has
// no asynchronous visibility gap worth modeling over a plain byte slice.
// The await flag is accepted for interface compatibility but has no effect.
func (c *Card) DMARead(offset uint32, dst []byte, await bool) error {
	return c.Read(offset, dst)
}

func (c *Card) DMAWrite(offset uint32, src []byte, await bool) error {
	return c.Write(offset, src)
}

// Compile-time interface check.
var _ interfaces.Driver = (*Card)(nil)
