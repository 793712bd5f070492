package catalog

import "sync"

// MemoryInventory is a map-backed Inventory used by the CLI, the simulator
// and tests. Safe for concurrent use.
type MemoryInventory struct {
	mu    sync.RWMutex
	items map[string]int
}

// NewMemoryInventory creates an inventory seeded with the given counts.
func NewMemoryInventory(items map[string]int) *MemoryInventory {
	inv := &MemoryInventory{items: make(map[string]int, len(items))}
	for k, v := range items {
		inv.items[k] = v
	}
	return inv
}

// OwnedQuantity returns the owned count for itemID (0 if absent).
func (m *MemoryInventory) OwnedQuantity(itemID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[itemID]
}

// Add adjusts the owned count for itemID by delta, clamping at zero.
func (m *MemoryInventory) Add(itemID string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.items[itemID] + delta
	if n < 0 {
		n = 0
	}
	m.items[itemID] = n
}
