package rfmdrv

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
)

// dmaRing lazily creates one io_uring instance per Device, shared by every
// DMARead/DMAWrite call against it.
type dmaRing struct {
	mu   sync.Mutex
	ring *giouring.Ring
}

func (d *Device) ring() (*giouring.Ring, error) {
	d.dmaOnce.mu.Lock()
	defer d.dmaOnce.mu.Unlock()
	if d.dmaOnce.ring == nil {
		r, err := giouring.CreateRing(32)
		if err != nil {
			return nil, fmt.Errorf("rfmdrv: create io_uring: %w", err)
		}
		d.dmaOnce.ring = r
	}
	return d.dmaOnce.ring, nil
}

// mmapRegion is the DMARegion returned by MapDMA: a view over a second
// mmap of the device fd at the page containing physAddr.
type mmapRegion struct {
	buf []byte
}

func (m *mmapRegion) Bytes() []byte { return m.buf }

// MapDMA maps physAddr..physAddr+length of the underlying device as a
// DMA-visible region, distinct from the header/data window mapped by Open.
func (d *Device) MapDMA(physAddr uint64, length uint32) (interfaces.DMARegion, error) {
	addr, _, errno := syscall.Syscall6(
		syscall.SYS_MMAP,
		0,
		uintptr(length),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
		uintptr(d.fd),
		uintptr(physAddr),
	)
	if errno != 0 {
		return nil, fmt.Errorf("rfmdrv: mmap DMA region at %#x: %v", physAddr, errno)
	}
	buf := unsafe.Slice((*byte)(pointerFromMmap(addr)), length)
	return &mmapRegion{buf: buf}, nil
}

func (d *Device) UnmapDMA(region interfaces.DMARegion) error {
	m, ok := region.(*mmapRegion)
	if !ok || m.buf == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.buf[0]))
	_, _, errno := syscall.Syscall(syscall.SYS_MUNMAP, addr, uintptr(len(m.buf)), 0)
	if errno != 0 {
		return fmt.Errorf("rfmdrv: munmap DMA region: %v", errno)
	}
	m.buf = nil
	return nil
}

// DMARead issues an io_uring read at offset into dst. When await is true the
// call submits and waits for the completion queue entry; when false it
// submits without waiting, leaving completion unobserved (fire-and-forget,
// used by AsyncOutputBroker — spec.md §4.9).
func (d *Device) DMARead(offset uint32, dst []byte, await bool) error {
	return d.dmaOp(offset, dst, await, false)
}

// DMAWrite mirrors DMARead for writes.
func (d *Device) DMAWrite(offset uint32, src []byte, await bool) error {
	return d.dmaOp(offset, src, await, true)
}

func (d *Device) dmaOp(offset uint32, buf []byte, await, write bool) error {
	ring, err := d.ring()
	if err != nil {
		return err
	}

	sqe := ring.GetSQE()
	if sqe == nil {
		return fmt.Errorf("rfmdrv: io_uring submission queue full")
	}
	if write {
		sqe.PrepareWrite(int32(d.fd), buf, uint64(offset), 0)
	} else {
		sqe.PrepareRead(int32(d.fd), buf, uint64(offset), 0)
	}
	sqe.UserData = uint64(offset)

	if !await {
		if _, err := ring.Submit(); err != nil {
			return fmt.Errorf("rfmdrv: submit async DMA op: %w", err)
		}
		return nil
	}

	if _, err := ring.SubmitAndWait(1); err != nil {
		return fmt.Errorf("rfmdrv: submit DMA op: %w", err)
	}
	cqe, err := ring.WaitCQE()
	if err != nil {
		return fmt.Errorf("rfmdrv: wait DMA completion: %w", err)
	}
	defer ring.SeenCQE(cqe)
	if cqe.Res < 0 {
		return fmt.Errorf("rfmdrv: DMA op failed: res=%d", cqe.Res)
	}
	return nil
}
