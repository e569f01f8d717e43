package metrics

import "runtime"

// MemorySnapshot holds a point-in-time memory reading.
type MemorySnapshot struct {
	HeapAlloc  uint64 // bytes in use by application
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // number of completed GC cycles
}

// MemoryCollector reads runtime memory statistics.
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Snapshot reads current memory statistics.
func (mc *MemoryCollector) Snapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// AllocatedSince returns the bytes allocated between before and now.
func (mc *MemoryCollector) AllocatedSince(before MemorySnapshot) uint64 {
	now := mc.Snapshot()
	if now.TotalAlloc < before.TotalAlloc {
		return 0
	}
	return now.TotalAlloc - before.TotalAlloc
}
