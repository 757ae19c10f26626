package ingress

import (
	"net"
	"sync"
)

// AddressMap is the sensor-id → source-address mapping maintained by
// the sensor endpoint and consulted by the reply sender. Upserts are
// atomic per key; multiple readers and a single logical writer share it
// concurrently, grounded on the teacher's memoryRegistry sync.RWMutex
// pattern.
type AddressMap struct {
	mu   sync.RWMutex
	addr map[uint32]net.Addr
}

// NewAddressMap constructs an empty AddressMap.
func NewAddressMap() *AddressMap {
	return &AddressMap{addr: make(map[uint32]net.Addr)}
}

// Upsert records addr as the latest known source for sensorID.
func (a *AddressMap) Upsert(sensorID uint32, addr net.Addr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addr[sensorID] = addr
}

// Lookup returns the last-seen address for sensorID, if any.
func (a *AddressMap) Lookup(sensorID uint32) (net.Addr, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	addr, ok := a.addr[sensorID]
	return addr, ok
}
