//go:build linux && cgo

package rfmdrv

/*
#include <stdint.h>

// x86-64 store fence: all prior stores become globally visible before any
// subsequent store.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// x86-64 full memory fence: all prior loads and stores complete before any
// subsequent load or store.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// Sfence issues a store fence. Used after writing iteration/time but before
// setting readyFlag, so a peer that observes readyFlag never sees a stale
// iteration or time word (spec.md §4.4).
func Sfence() {
	C.sfence_impl()
}

// Mfence issues a full memory fence. Used around readyFlag reads on the
// polling side, so a peer never reorders the iteration/time load ahead of
// the readyFlag load that gates it.
func Mfence() {
	C.mfence_impl()
}
