// Package sync implements the cross-host cycle handshake (spec.md §4.4,
// component D): the master's iteration/time broadcast and the seq-lock
// ready-flag protocol both sides use to detect a torn read.
package sync

import (
	"math"
	"time"

	"github.com/oberon-rt/rfmsync/internal/constants"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
)

// MasterStep publishes one cycle's iteration and wall-clock time. It clears
// readyFlag, writes iteration and time, then sets readyFlag — with a store
// fence between the data writes and the flag set so a polling slave never
// observes readyFlag==1 paired with a stale iteration or time word.
func MasterStep(d interfaces.Driver, iteration uint32, wallClock float64) error {
	if err := d.Poke8(constants.ReadyFlagOffset, 0); err != nil {
		return err
	}
	if err := d.Poke32(constants.IterationOffset, iteration); err != nil {
		return err
	}
	if err := d.Poke32(constants.TimeOffset, math.Float32bits(float32(wallClock))); err != nil {
		return err
	}
	if err := d.Poke8(constants.ReadyFlagOffset, 1); err != nil {
		return err
	}
	return nil
}

// TryReadIteration polls readyFlag until it observes a set-then-still-set
// pair bracketing a single consistent (iteration, time) read, or until
// maxRetries is exhausted. It returns ok==false on exhaustion (spec.md's
// SyncMissed condition) rather than returning a torn read.
func TryReadIteration(d interfaces.Driver, maxRetries int, backoff time.Duration) (iteration uint32, wallClock float64, ok bool, err error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		flag, ferr := d.Peek8(constants.ReadyFlagOffset)
		if ferr != nil {
			return 0, 0, false, ferr
		}
		if flag == 0 {
			time.Sleep(backoff)
			continue
		}

		it, ierr := d.Peek32(constants.IterationOffset)
		if ierr != nil {
			return 0, 0, false, ierr
		}
		tm, terr := d.Peek32(constants.TimeOffset)
		if terr != nil {
			return 0, 0, false, terr
		}

		flag2, ferr2 := d.Peek8(constants.ReadyFlagOffset)
		if ferr2 != nil {
			return 0, 0, false, ferr2
		}
		if flag2 == 0 {
			// The master cleared the flag mid-read (torn read); retry.
			continue
		}

		return it, float64(math.Float32frombits(tm)), true, nil
	}
	return 0, 0, false, nil
}
