package store

import (
	"sync"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/metrics"
)

// DefaultHistorySize is the default number of samples retained per host.
const DefaultHistorySize = 60

// Sample is what History keeps from one poll cycle. Counters are the
// cumulative MB totals; rates come from the difference between samples.
type Sample struct {
	At      time.Time
	CPU     float64 // percent busy, 0-100
	Memory  float64 // percent used, 0-100
	DownMB  float64
	UpMB    float64
	ReadsMB float64
	WriteMB float64
}

// SampleOf extracts a Sample from an entry. Fields never observed count
// as zero.
func SampleOf(e Entry, at time.Time) Sample {
	s := Sample{
		At:      at,
		DownMB:  e.Down.Or(0),
		UpMB:    e.Up.Or(0),
		ReadsMB: e.Reads.Or(0),
		WriteMB: e.Writes.Or(0),
	}
	if usage, ok := e.CPUUsage.Get(); ok && usage != metrics.Epsilon {
		s.CPU = usage
	}
	if used, ok := e.MemoryUsed.Get(); ok && used != metrics.Epsilon {
		s.Memory = used / (metrics.PercentScale / 100)
	}
	return s
}

// Rates is throughput between the two most recent samples, in MB/s.
type Rates struct {
	DownMBps  float64 `json:"downMBps"`
	UpMBps    float64 `json:"upMBps"`
	ReadMBps  float64 `json:"readMBps"`
	WriteMBps float64 `json:"writeMBps"`
}

// History keeps a fixed window of samples per host in ring buffers.
// It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	size  int
	hosts map[string]*ringBuffer
}

// ringBuffer is a fixed-size circular buffer of samples.
type ringBuffer struct {
	data  []Sample
	head  int
	count int
}

// NewHistory creates a history tracker keeping size samples per host.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:  size,
		hosts: make(map[string]*ringBuffer),
	}
}

// Push appends a sample for the host, evicting the oldest when full.
func (h *History) Push(hostID string, s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.hosts[hostID]
	if !ok {
		r = &ringBuffer{data: make([]Sample, h.size)}
		h.hosts[hostID] = r
	}
	r.push(s)
}

// Record pushes the sample derived from an entry.
func (h *History) Record(e Entry) {
	at := e.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	h.Push(e.HostID, SampleOf(e, at))
}

// CPUSeries returns up to count CPU percentages, oldest first.
func (h *History) CPUSeries(hostID string, count int) []float64 {
	return h.series(hostID, count, func(s Sample) float64 { return s.CPU })
}

// MemorySeries returns up to count memory percentages, oldest first.
func (h *History) MemorySeries(hostID string, count int) []float64 {
	return h.series(hostID, count, func(s Sample) float64 { return s.Memory })
}

func (h *History) series(hostID string, count int, pick func(Sample) float64) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.hosts[hostID]
	if !ok {
		return nil
	}
	samples := r.getLast(count)
	if samples == nil {
		return nil
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out
}

// Rates computes throughput from the last two samples. It reports false
// until two samples with distinct timestamps exist. A counter that went
// backwards (reboot, wrap) yields zero for that rate.
func (h *History) Rates(hostID string) (Rates, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.hosts[hostID]
	if !ok {
		return Rates{}, false
	}
	last := r.getLast(2)
	if len(last) < 2 {
		return Rates{}, false
	}
	prev, cur := last[0], last[1]
	secs := cur.At.Sub(prev.At).Seconds()
	if secs <= 0 {
		return Rates{}, false
	}

	return Rates{
		DownMBps:  rate(prev.DownMB, cur.DownMB, secs),
		UpMBps:    rate(prev.UpMB, cur.UpMB, secs),
		ReadMBps:  rate(prev.ReadsMB, cur.ReadsMB, secs),
		WriteMBps: rate(prev.WriteMB, cur.WriteMB, secs),
	}, true
}

func rate(prev, cur, secs float64) float64 {
	delta := cur - prev
	if delta < 0 {
		return 0
	}
	return delta / secs
}

// Count returns the number of samples stored for a host.
func (h *History) Count(hostID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.hosts[hostID]
	if !ok {
		return 0
	}
	return r.count
}

// Clear removes all history for the host.
func (h *History) Clear(hostID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.hosts, hostID)
}

// push adds a sample to the ring buffer.
func (r *ringBuffer) push(s Sample) {
	r.data[r.head] = s
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// getLast returns the last count samples in chronological order.
func (r *ringBuffer) getLast(count int) []Sample {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	size := len(r.data)
	result := make([]Sample, count)
	// head is the next write position, so the newest sample is at head-1.
	start := (r.head - count + size) % size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%size]
	}
	return result
}
