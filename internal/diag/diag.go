// Package diag implements the counter-based staleness diagnostics (spec.md
// §4.5, component E): each peer's downsample ratio relative to this host
// (computed once from the peer table), and the derived diagData staleness
// score.
package diag

import (
	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/wire"
)

// ComputeRatios derives each peer's expected counter-advance ratio relative
// to this host from the published downsample factors: a peer downsampled by
// factor N advances its own counter once per N local cycles, so the ratio
// this host expects to see is peers[i].DownsampleFactor / localFactor.
func ComputeRatios(peers wire.PeerLayoutTable, localFactor uint32) []float32 {
	if localFactor == 0 {
		localFactor = 1
	}
	ratios := make([]float32, len(peers))
	for i, p := range peers {
		factor := p.DownsampleFactor
		if factor == 0 {
			factor = 1
		}
		ratios[i] = float32(factor) / float32(localFactor)
	}
	return ratios
}

// Update recomputes diagData for every peer after a cycle's counterRead has
// been scattered in. diagData[i] = ownCounter - ratio[i]*counterRead[i]: at
// steady state this tracks zero; a peer that stops advancing its counter
// (stalled or disconnected) drives its diagData away from zero at a rate
// proportional to the local cycle rate.
func Update(d *wire.Diagnostics, ratios []float32, ownCounter int32, counterRead []int32) {
	n := len(counterRead)
	if cap(d.DiagData) < n {
		d.DiagData = make([]float32, n)
	}
	d.DiagData = d.DiagData[:n]
	copy(d.CounterRead, counterRead)
	for i := 0; i < n; i++ {
		d.DiagData[i] = float32(ownCounter) - ratios[i]*float32(counterRead[i])
	}
}

// MasterSelfHealth is the master's self-health probe, run only after its
// own masterStep has exhausted masterStepMaxRetries without success: it
// reads the RFM's current iteration directly and reports the drift between
// what the master believes the cycle to be and what the region last
// durably recorded. If the probe itself fails, it returns
// constants.MasterStaleSentinel rather than propagating the error, since
// diagData has no slot for "unknown" (spec.md §4.5, §8 scenario 4).
func MasterSelfHealth(d interfaces.Driver, ownCycle uint32) int32 {
	iteration, err := d.Peek32(constants.IterationOffset)
	if err != nil {
		return constants.MasterStaleSentinel
	}
	return int32(ownCycle) - int32(iteration)
}
