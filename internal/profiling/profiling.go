package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Lightweight wall-clock profiler for pipeline hot paths. Stats accumulate
// until Reset, typically once per logging interval.

// Stat is the accumulated timing for one tracked name.
type Stat struct {
	Total time.Duration
	Max   time.Duration
	Count int64
}

var (
	mu    sync.Mutex
	stats = make(map[string]Stat)
)

// Track returns a stop function that records the elapsed time under the given
// name. Usage: defer profiling.Track("render.workerTick")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		s := stats[name]
		s.Total += d
		s.Count++
		if d > s.Max {
			s.Max = d
		}
		stats[name] = s
		mu.Unlock()
	}
}

// Reset clears the accumulated stats.
func Reset() {
	mu.Lock()
	stats = make(map[string]Stat)
	mu.Unlock()
}

// Snapshot returns a copy of the accumulated stats.
func Snapshot() map[string]Stat {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]Stat, len(stats))
	for k, v := range stats {
		out[k] = v
	}
	return out
}

// Summary formats the top n names by total time, heaviest first.
// Example: "render.workerTick:12.4ms/31 max 2.1ms, view.loadColumn:3.0ms/16 max 0.4ms"
func Summary(n int) string {
	ss := Snapshot()
	names := make([]string, 0, len(ss))
	for k := range ss {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return ss[names[i]].Total > ss[names[j]].Total })
	if n > len(names) {
		n = len(names)
	}
	parts := make([]string, 0, n)
	for _, name := range names[:n] {
		s := ss[name]
		parts = append(parts, fmt.Sprintf("%s:%s/%d max %s", name, formatMs(s.Total), s.Count, formatMs(s.Max)))
	}
	return strings.Join(parts, ", ")
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
