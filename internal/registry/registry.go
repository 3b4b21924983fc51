// Package registry implements the layout registry (spec.md §4.2, component
// B): publishing this host's write layout into the shared header, fetching
// every peer's layout, and checking contiguity.
package registry

import (
	"fmt"

	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// ContiguityError reports the first nodeID whose layout fails to abut the
// next one, per spec.md §4.2.
type ContiguityError struct {
	Index int
}

func (e *ContiguityError) Error() string {
	return fmt.Sprintf("peer layouts not contiguous starting at index %d", e.Index)
}

// Publish writes this host's triple at PeerLayoutBase + nodeID*12 as three
// 32-bit pokes. All three must succeed.
func Publish(d interfaces.Driver, nodeID uint32, layout wire.PeerLayout) error {
	base := wire.OffsetOf(nodeID)
	if err := d.Poke32(base+0, layout.WriteOffset); err != nil {
		return fmt.Errorf("publish writeOffset: %w", err)
	}
	if err := d.Poke32(base+4, layout.OutputSize); err != nil {
		return fmt.Errorf("publish outputSize: %w", err)
	}
	if err := d.Poke32(base+8, layout.DownsampleFactor); err != nil {
		return fmt.Errorf("publish downsampleFactor: %w", err)
	}
	return nil
}

// Fetch bulk-reads the nHosts*12 bytes starting at PeerLayoutBase and
// parses them into a PeerLayoutTable.
func Fetch(d interfaces.Driver, nHosts uint32) (wire.PeerLayoutTable, error) {
	staging := make([]byte, nHosts*constants.PeerLayoutSize)
	if err := d.Read(constants.PeerLayoutBase, staging); err != nil {
		return nil, fmt.Errorf("fetch peer layouts: %w", err)
	}

	table := make(wire.PeerLayoutTable, nHosts)
	for i := uint32(0); i < nHosts; i++ {
		off := i * constants.PeerLayoutSize
		table[i] = wire.DecodePeerLayout(staging[off : off+constants.PeerLayoutSize])
	}
	return table, nil
}

// CheckContiguity requires layout[i].WriteOffset+layout[i].OutputSize ==
// layout[i+1].WriteOffset for every i in [0, len(table)-1). On the first
// violation it returns a *ContiguityError citing the offending index.
func CheckContiguity(table wire.PeerLayoutTable) error {
	for i := 0; i < len(table)-1; i++ {
		if table[i].WriteOffset+table[i].OutputSize != table[i+1].WriteOffset {
			return &ContiguityError{Index: i}
		}
	}
	return nil
}
