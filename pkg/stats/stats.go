package stats

import (
	"context"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	_ = 1 << (10 * iota)
	kilobyte
	megabyte
)

// EnableMemoryStatistics starts a goroutine that periodically logs the
// memory usage and the number of goroutines of the process.
func EnableMemoryStatistics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				printMemoryStatistics()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func printMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Debugf(
		"heap allocated: %.1fMB, total allocated: %.1fMB, goroutines: %d",
		toMegabytes(memStats.HeapAlloc),
		toMegabytes(memStats.TotalAlloc),
		runtime.NumGoroutine(),
	)
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / megabyte
}
