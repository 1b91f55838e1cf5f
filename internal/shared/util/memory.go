package util

import "runtime"

// HeapAllocMB is the live heap in whole MiB. The app logs it after each
// analysis so watch sessions show whether the index keeps growing.
func HeapAllocMB() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc >> 20
}
