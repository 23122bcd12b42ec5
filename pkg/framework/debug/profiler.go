package debug

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler records timing statistics for named sections.
type Profiler struct {
	mu           sync.RWMutex
	measurements map[string]*Measurement
	enabled      atomic.Bool
	maxSamples   int
}

// Measurement holds timing statistics for a profiled section.
type Measurement struct {
	name        string
	count       uint64
	totalTime   time.Duration
	minTime     time.Duration
	maxTime     time.Duration
	lastTime    time.Duration
	samples     []time.Duration
	sampleIndex int
}

// NewProfiler creates a profiler keeping the last maxSamples timings of
// each section for percentiles.
func NewProfiler(maxSamples int) *Profiler {
	p := &Profiler{
		measurements: make(map[string]*Measurement),
		maxSamples:   max(maxSamples, 1),
	}
	p.enabled.Store(true)
	return p
}

// SetEnabled enables or disables profiling.
func (p *Profiler) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// IsEnabled returns whether profiling is enabled.
func (p *Profiler) IsEnabled() bool {
	return p.enabled.Load()
}

// Start begins timing a named section and returns the function that ends it.
func (p *Profiler) Start(name string) func() {
	if !p.enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Time measures the execution time of a function.
func (p *Profiler) Time(name string, fn func()) {
	stop := p.Start(name)
	defer stop()
	fn()
}

// Record stores one timing for name.
func (p *Profiler) Record(name string, elapsed time.Duration) {
	if !p.enabled.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	m, exists := p.measurements[name]
	if !exists {
		m = &Measurement{
			name:    name,
			minTime: elapsed,
			maxTime: elapsed,
			samples: make([]time.Duration, p.maxSamples),
		}
		p.measurements[name] = m
	}

	m.count++
	m.totalTime += elapsed
	m.lastTime = elapsed
	m.minTime = min(m.minTime, elapsed)
	m.maxTime = max(m.maxTime, elapsed)

	m.samples[m.sampleIndex] = elapsed
	m.sampleIndex = (m.sampleIndex + 1) % len(m.samples)
}

// GetMeasurement returns a copy of the measurement for a named section.
func (p *Profiler) GetMeasurement(name string) (*Measurement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, exists := p.measurements[name]
	if !exists {
		return nil, false
	}
	c := *m
	c.samples = append([]time.Duration(nil), m.samples...)
	return &c, true
}

// Names returns the recorded section names in sorted order.
func (p *Profiler) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.measurements))
	for k := range p.measurements {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset clears all measurements.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measurements = make(map[string]*Measurement)
}

// Report generates a performance report.
func (p *Profiler) Report() string {
	names := p.Names()
	if len(names) == 0 {
		return "No measurements recorded"
	}

	var sb strings.Builder
	sb.WriteString("Performance Report:\n")
	sb.WriteString("==================\n\n")
	for _, name := range names {
		m, _ := p.GetMeasurement(name)
		fmt.Fprintf(&sb, "%s:\n", name)
		fmt.Fprintf(&sb, "  Count:   %d\n", m.count)
		fmt.Fprintf(&sb, "  Total:   %v\n", m.totalTime)
		fmt.Fprintf(&sb, "  Average: %v\n", m.Average())
		fmt.Fprintf(&sb, "  Min:     %v\n", m.minTime)
		fmt.Fprintf(&sb, "  Max:     %v\n", m.maxTime)
		fmt.Fprintf(&sb, "  P99:     %v\n\n", m.Percentile(99))
	}
	return sb.String()
}

// Count returns how many timings were recorded.
func (m *Measurement) Count() uint64 { return m.count }

// Total returns the sum of all timings.
func (m *Measurement) Total() time.Duration { return m.totalTime }

// Last returns the most recent timing.
func (m *Measurement) Last() time.Duration { return m.lastTime }

// Max returns the longest timing.
func (m *Measurement) Max() time.Duration { return m.maxTime }

// Average returns the average time for this measurement.
func (m *Measurement) Average() time.Duration {
	if m.count == 0 {
		return 0
	}
	return m.totalTime / time.Duration(m.count)
}

// Percentile returns the p-th percentile of the retained samples.
func (m *Measurement) Percentile(p float64) time.Duration {
	n := min(int(m.count), len(m.samples))
	if n == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), m.samples[:n]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(n-1)*p/100.0)]
}

// LoadMeter tracks how much of each block's real-time budget processing
// used. It is written by the processing thread and read from anywhere.
type LoadMeter struct {
	exclusive atomic.Int64  // last block, nanoseconds
	average   atomic.Uint64 // smoothed load, float64 bits, percent
	blocks    atomic.Uint64
}

// loadSmoothing weights the newest block in the running average.
const loadSmoothing = 0.1

// Record stores the time one block of frames took at sampleRate.
func (l *LoadMeter) Record(elapsed time.Duration, frames int, sampleRate float64) {
	l.exclusive.Store(int64(elapsed))
	if frames <= 0 || sampleRate <= 0 {
		return
	}
	budget := float64(frames) / sampleRate * float64(time.Second)
	load := float64(elapsed) / budget * 100
	prev := math.Float64frombits(l.average.Load())
	if l.blocks.Add(1) == 1 {
		prev = load
	}
	l.average.Store(math.Float64bits(prev + loadSmoothing*(load-prev)))
}

// Exclusive returns the processing time of the most recent block.
func (l *LoadMeter) Exclusive() time.Duration { return time.Duration(l.exclusive.Load()) }

// Load returns the smoothed percentage of the block budget used.
func (l *LoadMeter) Load() float64 { return math.Float64frombits(l.average.Load()) }

// Blocks returns how many blocks were recorded.
func (l *LoadMeter) Blocks() uint64 { return l.blocks.Load() }
