package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Stats is one interval's worth of frame and memory statistics.
type Stats struct {
	FPS         float64
	AvgFrame    time.Duration
	MaxFrame    time.Duration
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// String formats the stats the way they appear in the log.
func (s Stats) String() string {
	return fmt.Sprintf("FPS: %.2f | Frame: %.2f ms (max %.2f ms) | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		s.FPS, ms(s.AvgFrame), ms(s.MaxFrame), s.HeapMB, s.AllocRateMB, s.GCCount, s.LastPauseUs, s.MaxPauseUs, s.SysMB)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Profiler tracks frame rate, frame time and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	lastFrame      time.Time
	maxFrame       time.Duration
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	stats          Stats
	logEnabled     bool
	now            func() time.Time
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second and logging is on.
//
// Parameters:
//   - opts: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		logEnabled:     true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()
	p.lastFrame = p.lastTime
	return p
}

// Tick should be called once per frame to track frame timing.
// Computes and logs statistics when the update interval has elapsed.
// Statistics include: FPS, average and max frame time, heap usage, allocation rate,
// GC count/pause times and total memory.
//
// Returns:
//   - bool: true if a new Stats sample was produced this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	if frame := currentTime.Sub(p.lastFrame); frame > p.maxFrame {
		p.maxFrame = frame
	}
	p.lastFrame = currentTime

	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)

	s := Stats{
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		AvgFrame: elapsed / time.Duration(p.frameCount),
		MaxFrame: p.maxFrame,
		// Alloc: Bytes of allocated heap objects (live memory)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		HeapMB: float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:  float64(p.memStats.Sys) / 1024 / 1024,
		// TotalAlloc grows forever, its delta is the allocation churn of the interval
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}

	if gcCount := s.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		s.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	if p.logEnabled {
		log.Printf("[Profiler] %s", s)
	}

	p.stats = s
	p.frameCount = 0
	p.maxFrame = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Stats returns the most recent sample produced by Tick.
//
// Returns:
//   - Stats: the last completed interval, zero before the first interval elapses
func (p *Profiler) Stats() Stats {
	return p.stats
}

// Reset restarts the current interval, discarding frames counted so far.
// Call it after a pause so the idle time is not averaged into the next sample.
func (p *Profiler) Reset() {
	p.frameCount = 0
	p.maxFrame = 0
	p.lastTime = p.now()
	p.lastFrame = p.lastTime
}
