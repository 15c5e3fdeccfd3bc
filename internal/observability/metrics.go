package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	requestLatency map[string]time.Duration
	errorCount     map[string]int64
	decisions      map[string]int64
	deliveries     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		requestLatency: make(map[string]time.Duration),
		errorCount:     make(map[string]int64),
		decisions:      make(map[string]int64),
		deliveries:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDispatch counts a ticket decision and the per-destination results of
// its dispatch.
func (m *Metrics) RecordDispatch(action, status string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[action+"|"+status]++
	m.deliveries[action+"|succeeded"] += int64(succeeded)
	m.deliveries[action+"|failed"] += int64(failed)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests   []Counter `json:"requests"`
	Errors     []Counter `json:"errors"`
	Decisions  []Counter `json:"decisions"`
	Deliveries []Counter `json:"deliveries"`
}

// Counter is a single named count. AvgMillis is set for request counters.
type Counter struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	AvgMillis float64 `json:"avg_ms,omitempty"`
}

// Snapshot copies the counters, sorted by key.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := counters(m.requestCount)
	for i := range requests {
		total := m.requestLatency[requests[i].Key]
		if requests[i].Count > 0 {
			requests[i].AvgMillis = float64(total.Microseconds()) / 1000 / float64(requests[i].Count)
		}
	}
	return Snapshot{
		Requests:   requests,
		Errors:     counters(m.errorCount),
		Decisions:  counters(m.decisions),
		Deliveries: counters(m.deliveries),
	}
}

func counters(in map[string]int64) []Counter {
	out := make([]Counter, 0, len(in))
	for k, v := range in {
		out = append(out, Counter{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
