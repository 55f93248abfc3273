// Package sampler runs the periodic snapshot loop, caches the latest
// record and fans updates out to subscribers.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
)

// Builder produces one snapshot per call.
type Builder interface {
	Build(ctx context.Context) (snapshot.Snapshot, error)
}

// Manager owns the sampling cadence, the latest-snapshot cache and the
// subscriber fan-out.
type Manager struct {
	interval time.Duration
	builder  Builder
	logger   *slog.Logger

	mu          sync.RWMutex
	latest      snapshot.Snapshot
	hasLatest   bool
	subscribers map[*subscriber]struct{}
}

// NewManager builds a Manager over a snapshot builder.
func NewManager(interval time.Duration, builder Builder, logger *slog.Logger) (*Manager, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if builder == nil {
		return nil, fmt.Errorf("builder must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		interval:    interval,
		builder:     builder,
		logger:      logger.With("component", "sampler"),
		subscribers: make(map[*subscriber]struct{}),
	}, nil
}

// Run samples until the context is canceled. A failed build keeps the
// previous snapshot in the cache and is retried on the next tick.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("sampler started", "interval", m.interval)

	// Initial sample to prime the cache.
	m.sample(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sampler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Manager) sample(ctx context.Context) {
	snap, err := m.builder.Build(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("snapshot build failed", "err", err)
		}
		return
	}
	m.store(snap)
}

// Latest returns the most recent snapshot.
func (m *Manager) Latest() (snapshot.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasLatest
}

// Ready reports whether at least one snapshot has been published.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasLatest
}

// Subscribe registers a listener for snapshot updates. The returned
// function removes the subscription and closes the channel.
func (m *Manager) Subscribe() (<-chan snapshot.Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := newSubscriber()
	m.subscribers[sub] = struct{}{}
	if m.hasLatest {
		sub.send(m.latest)
	}

	unsubscribe := func() {
		m.removeSubscriber(sub)
	}
	return sub.channel(), unsubscribe
}

func (m *Manager) store(snap snapshot.Snapshot) {
	m.mu.Lock()
	m.latest = snap
	m.hasLatest = true
	targets := make([]*subscriber, 0, len(m.subscribers))
	for sub := range m.subscribers {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	for _, sub := range targets {
		sub.send(snap)
	}
}

func (m *Manager) removeSubscriber(sub *subscriber) {
	m.mu.Lock()
	delete(m.subscribers, sub)
	m.mu.Unlock()
	sub.close()
}

type subscriber struct {
	ch     chan snapshot.Snapshot
	mu     sync.Mutex
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan snapshot.Snapshot, 1)}
}

func (s *subscriber) channel() <-chan snapshot.Snapshot {
	return s.ch
}

func (s *subscriber) send(snap snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	// Drop the stale snapshot to make room for the new one.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	close(s.ch)
	s.closed = true
}
