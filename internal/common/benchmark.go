// Package common provides shared timing and benchmarking utilities.
package common

import (
	"fmt"
	"runtime"
	"time"
)

// MemoryStats holds the memory counters relevant to benchmarking.
type MemoryStats struct {
	Alloc         uint64
	TotalAlloc    uint64
	Sys           uint64
	HeapAlloc     uint64
	HeapObjects   uint64
	NumGC         uint32
	GCCPUFraction float64
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:         m.Alloc,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		HeapAlloc:     m.HeapAlloc,
		HeapObjects:   m.HeapObjects,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.Alloc/1024,
		m.TotalAlloc/1024,
		m.Sys/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// BenchmarkResult holds the outcome of one benchmark run.
type BenchmarkResult struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// RunBenchmark runs fn the given number of times and collects duration and
// memory deltas. The first error aborts the run.
func RunBenchmark(name string, iterations int, fn func() error) BenchmarkResult {
	result := BenchmarkResult{Name: name, Iterations: iterations}
	if iterations <= 0 {
		result.Error = fmt.Errorf("iterations must be > 0, got %d", iterations)
		return result
	}

	result.MemoryBefore = GetMemoryStats()
	timer := NewNamedTimer(name)
	for i := 0; i < iterations; i++ {
		if err := fn(); err != nil {
			result.Error = fmt.Errorf("iteration %d: %w", i, err)
			result.Duration = timer.Stop()
			return result
		}
	}
	result.Duration = timer.Stop()
	result.MemoryAfter = GetMemoryStats()
	return result
}

// String returns a formatted string representation of the benchmark result.
func (br BenchmarkResult) String() string {
	if br.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", br.Name, br.Error)
	}

	memDiff := int64(br.MemoryAfter.Alloc) - int64(br.MemoryBefore.Alloc)
	avgDuration := br.Duration / time.Duration(br.Iterations)

	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, mem: %+d KB",
		br.Name, br.Iterations, avgDuration, br.Duration, memDiff/1024)
}
