// Package remap implements the remap planner (spec.md §4.3, component C):
// from the global peer layout and this host's own (readOffset, inputSize),
// it computes which bytes of the shared region this host must read each
// cycle — a single contiguous bulk-read range plus a scatter plan back into
// the host-visible input buffer, including each peer's interleaved counter
// word.
package remap

import (
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// BuildReadPlan implements spec.md §4.3 steps 1-6. peers is the full
// PeerLayoutTable (indexed by nodeID); readOffset/inputSize are this host's
// own window into the shared user-data region.
//
// Every peer included in the returned plan is read from its overlap point
// with the window through to the end of ITS OWN payload — never truncated
// short of that boundary — so that the 4 bytes immediately following each
// included peer's read chunk are always that peer's trailing cycle
// counter. This is what makes the Σsize + 4·peerCount total in step 6
// exact: peer slices are physically back-to-back (write-side layout,
// §4.3), so one contiguous bulk read of TotalBytes starting at
// PerPeer[FirstPeer].SrcOffset covers every included peer's payload and
// counter with no gaps.
func BuildReadPlan(peers wire.PeerLayoutTable, readOffset, inputSize uint32) wire.ReadPlan {
	nHosts := uint32(len(peers))
	if nHosts == 0 || inputSize == 0 {
		return wire.NoRead()
	}
	windowEnd := readOffset + inputSize

	firstPeer := int32(-1)
	lastPeer := int32(-1)
	perPeer := make(map[uint32]wire.PerPeerRead)

	// Step 1: walk peers in ascending nodeID, collecting those fully
	// covered by the window.
	for i := uint32(0); i < nHosts; i++ {
		p := peers[i]
		peerStart, peerEnd := p.WriteOffset, p.WriteOffset+p.OutputSize
		if peerStart >= readOffset && peerEnd <= windowEnd {
			if firstPeer == -1 {
				firstPeer = int32(i)
			}
			lastPeer = int32(i)
			perPeer[i] = wire.PerPeerRead{SrcOffset: p.WriteOffset + i*constants.CounterWordSize, Size: p.OutputSize}
		}
	}

	// Step 2: the peer immediately preceding firstPeer may tail-overlap
	// the window's left edge without being fully covered.
	if firstPeer > 0 {
		i := uint32(firstPeer - 1)
		p := peers[i]
		peerEnd := p.WriteOffset + p.OutputSize
		if p.WriteOffset < readOffset && peerEnd > readOffset {
			perPeer[i] = wire.PerPeerRead{SrcOffset: readOffset + i*constants.CounterWordSize, Size: peerEnd - readOffset}
			firstPeer = int32(i)
		}
	}

	// Step 3: no peer found yet — check whether peer 0 itself overlaps
	// the window at all (window starts inside or before peer 0's span).
	if firstPeer == -1 {
		p := peers[0]
		peerStart, peerEnd := p.WriteOffset, p.WriteOffset+p.OutputSize
		overlapStart := maxU32(readOffset, peerStart)
		overlapEnd := minU32(windowEnd, peerEnd)
		if overlapStart < overlapEnd {
			perPeer[0] = wire.PerPeerRead{SrcOffset: overlapStart, Size: peerEnd - overlapStart}
			firstPeer, lastPeer = 0, 0
		}
	}

	// Step 4: still nothing — the window must start strictly inside a
	// single peer's span; find it directly.
	if firstPeer == -1 {
		for i := uint32(0); i < nHosts; i++ {
			p := peers[i]
			if readOffset >= p.WriteOffset && readOffset < p.WriteOffset+p.OutputSize {
				perPeer[i] = wire.PerPeerRead{SrcOffset: readOffset + i*constants.CounterWordSize, Size: p.WriteOffset + p.OutputSize - readOffset}
				firstPeer, lastPeer = int32(i), int32(i)
				break
			}
		}
	}

	if firstPeer == -1 {
		return wire.NoRead()
	}

	// Step 5: the peer immediately after lastPeer may head-overlap the
	// window's right edge without being fully covered; include it in
	// full (through its own payload end) so its counter is captured.
	next := uint32(lastPeer) + 1
	if next < nHosts {
		p := peers[next]
		if p.WriteOffset < windowEnd && p.WriteOffset+p.OutputSize > windowEnd {
			perPeer[next] = wire.PerPeerRead{SrcOffset: p.WriteOffset + next*constants.CounterWordSize, Size: p.OutputSize}
			lastPeer = int32(next)
		}
	}

	// Step 6: total bulk-read size, one counter word per included peer.
	var total uint32
	for i := firstPeer; i <= lastPeer; i++ {
		total += perPeer[uint32(i)].Size
	}
	total += uint32(lastPeer-firstPeer+1) * constants.CounterWordSize

	return wire.ReadPlan{FirstPeer: firstPeer, LastPeer: lastPeer, PerPeer: perPeer, TotalBytes: total}
}

// Scatter copies the payload bytes of buf (a contiguous bulk read of
// plan.TotalBytes starting at plan.PerPeer[plan.FirstPeer].SrcOffset) into
// external (exactly inputSize bytes, in nodeID order), and extracts each
// included peer's trailing 4-byte counter into counterRead.
//
// Each peer's chunk in buf spans [bufOffset, bufOffset+pr.Size) followed
// immediately by its 4-byte counter — see BuildReadPlan's doc comment for
// why that boundary is exact. Scatter additionally clips each peer's
// chunk to the logical window [readOffset, readOffset+inputSize), which
// only differs from the full chunk for the first and/or last peer.
func Scatter(buf []byte, plan wire.ReadPlan, peers wire.PeerLayoutTable, readOffset, inputSize uint32, external []byte, counterRead []int32) error {
	if plan.FirstPeer == -1 {
		return nil
	}
	windowEnd := readOffset + inputSize
	baseOffset := plan.PerPeer[uint32(plan.FirstPeer)].SrcOffset

	var scatterPos uint32
	for i := plan.FirstPeer; i <= plan.LastPeer; i++ {
		p := peers[i]
		pr := plan.PerPeer[uint32(i)]
		bufOffset := pr.SrcOffset - baseOffset

		logicalStart := maxU32(readOffset, p.WriteOffset)
		logicalEnd := minU32(windowEnd, p.WriteOffset+p.OutputSize)
		n := logicalEnd - logicalStart

		if n > 0 {
			copy(external[scatterPos:scatterPos+n], buf[bufOffset:bufOffset+n])
			scatterPos += n
		}

		counterOffset := bufOffset + pr.Size
		counterRead[i] = int32(leUint32(buf[counterOffset : counterOffset+constants.CounterWordSize]))
	}
	return nil
}

func leUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
