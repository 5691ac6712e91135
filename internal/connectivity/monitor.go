// Package connectivity maintains a single "is online" signal for the rest
// of the engine and notifies subscribers on transitions.
package connectivity

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Prober answers a single reachability question. *HTTPProber is the real
// implementation; tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// HTTPProber checks reachability with a HEAD request against a known URL.
type HTTPProber struct {
	client *http.Client
	url    string
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError, nil
}

// Subscriber receives online/offline transitions. Each subscriber sees
// transitions in chronological order; duplicate states are never delivered.
type Subscriber func(online bool)

// Monitor tracks network reachability. Probe failures downgrade the state
// to offline and never propagate to callers.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu          sync.Mutex
	online      bool
	initialized bool
	nextSubID   int
	subscribers map[int]Subscriber
}

func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		prober:      prober,
		interval:    interval,
		subscribers: make(map[int]Subscriber),
	}
}

// Initialize performs the initial reachability probe. Probe errors are
// treated as offline; connectivity issues must never abort startup.
func (m *Monitor) Initialize(ctx context.Context) {
	m.probe(ctx)
	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
}

// Start re-probes reachability on a fixed interval until ctx is cancelled.
// It blocks and is meant to run on its own goroutine.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// IsOnline returns the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transition notifications and returns an
// unsubscribe func. Only transitions are delivered, on the goroutine that
// detected them.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) probe(ctx context.Context) {
	online, err := m.prober.Probe(ctx)
	if err != nil {
		online = false
	}

	m.mu.Lock()
	changed := m.online != online || (!m.initialized && online)
	m.online = online
	var subs []Subscriber
	if changed {
		subs = make([]Subscriber, 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		log.Printf("Connectivity changed: online=%v", online)
		for _, fn := range subs {
			fn(online)
		}
	}
}
