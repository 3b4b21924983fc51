package rfmsync

import (
	"sync"

	"github.com/oberon-rt/rfmsync/backend/simrfm"
	"github.com/oberon-rt/rfmsync/internal/interfaces"
)

// MockDriver wraps a single-host backend/simrfm.Card with call counters, so
// tests can assert on how many times each Driver method fired without
// touching real hardware.
type MockDriver struct {
	card *simrfm.Card

	mu         sync.Mutex
	peekCalls  int
	pokeCalls  int
	readCalls  int
	writeCalls int
	dmaCalls   int
	closed     bool
}

// NewMockDriver creates a MockDriver attached as nodeID to a freshly
// allocated region of size bytes.
func NewMockDriver(size uint32, nodeID uint32) *MockDriver {
	return &MockDriver{card: simrfm.New(size, nodeID)}
}

// NewMockDriverPair creates two MockDrivers sharing one region, nodeID 0
// and 1, for master/slave round-trip tests.
func NewMockDriverPair(size uint32) (*MockDriver, *MockDriver) {
	drivers := NewMockDriverCluster(size, 2)
	return drivers[0], drivers[1]
}

// NewMockDriverCluster creates n MockDrivers sharing one region, nodeID 0
// through n-1, for cluster-level tests with more than two hosts.
func NewMockDriverCluster(size uint32, n uint32) []*MockDriver {
	region := simrfm.NewRegion(size)
	drivers := make([]*MockDriver, n)
	for i := uint32(0); i < n; i++ {
		drivers[i] = &MockDriver{card: simrfm.Attach(region, i)}
	}
	return drivers
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.card.Close()
}

func (m *MockDriver) Peek8(offset uint32) (uint8, error) {
	m.mu.Lock()
	m.peekCalls++
	m.mu.Unlock()
	return m.card.Peek8(offset)
}

func (m *MockDriver) Peek32(offset uint32) (uint32, error) {
	m.mu.Lock()
	m.peekCalls++
	m.mu.Unlock()
	return m.card.Peek32(offset)
}

func (m *MockDriver) Poke8(offset uint32, value uint8) error {
	m.mu.Lock()
	m.pokeCalls++
	m.mu.Unlock()
	return m.card.Poke8(offset, value)
}

func (m *MockDriver) Poke32(offset uint32, value uint32) error {
	m.mu.Lock()
	m.pokeCalls++
	m.mu.Unlock()
	return m.card.Poke32(offset, value)
}

func (m *MockDriver) Read(offset uint32, dst []byte) error {
	m.mu.Lock()
	m.readCalls++
	m.mu.Unlock()
	return m.card.Read(offset, dst)
}

func (m *MockDriver) Write(offset uint32, src []byte) error {
	m.mu.Lock()
	m.writeCalls++
	m.mu.Unlock()
	return m.card.Write(offset, src)
}

func (m *MockDriver) NodeID() (uint32, error) {
	return m.card.NodeID()
}

func (m *MockDriver) MapDMA(physAddr uint64, length uint32) (interfaces.DMARegion, error) {
	return m.card.MapDMA(physAddr, length)
}

func (m *MockDriver) UnmapDMA(r interfaces.DMARegion) error {
	return m.card.UnmapDMA(r)
}

func (m *MockDriver) SetDMAThreshold(bytes uint32) error {
	return m.card.SetDMAThreshold(bytes)
}

func (m *MockDriver) DMARead(offset uint32, dst []byte, await bool) error {
	m.mu.Lock()
	m.dmaCalls++
	m.mu.Unlock()
	return m.card.DMARead(offset, dst, await)
}

func (m *MockDriver) DMAWrite(offset uint32, src []byte, await bool) error {
	m.mu.Lock()
	m.dmaCalls++
	m.mu.Unlock()
	return m.card.DMAWrite(offset, src, await)
}

// IsClosed reports whether Close has been called.
func (m *MockDriver) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CallCounts returns the number of times each method category has fired.
func (m *MockDriver) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"peek":  m.peekCalls,
		"poke":  m.pokeCalls,
		"read":  m.readCalls,
		"write": m.writeCalls,
		"dma":   m.dmaCalls,
	}
}

var _ interfaces.Driver = (*MockDriver)(nil)
