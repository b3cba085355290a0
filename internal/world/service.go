package world

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/charmbracelet/log"
)

// ServiceConfig sets the cadence of the background loops.
type ServiceConfig struct {
	FlushInterval    time.Duration
	GenerateInterval time.Duration
	ShutdownTimeout  time.Duration
}

// Service drives a Manager on fixed-rate tickers: it keeps terrain generated
// around every watched position and periodically writes the cache back. It
// flushes one last time when stopped.
type Service struct {
	manager   *Manager
	generator Generator
	cfg       ServiceConfig

	mu      sync.Mutex
	anchors map[string]chunk.Position
}

func NewService(manager *Manager, generator Generator, cfg ServiceConfig) *Service {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	if cfg.GenerateInterval <= 0 {
		cfg.GenerateInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Service{
		manager:   manager,
		generator: generator,
		cfg:       cfg,
		anchors:   make(map[string]chunk.Position),
	}
}

// Watch keeps terrain generated around pos under name, replacing any previous
// position registered under the same name.
func (s *Service) Watch(name string, pos chunk.Position) {
	s.mu.Lock()
	s.anchors[name] = pos
	s.mu.Unlock()
}

func (s *Service) Unwatch(name string) {
	s.mu.Lock()
	delete(s.anchors, name)
	s.mu.Unlock()
}

// Anchors returns a copy of the watched positions.
func (s *Service) Anchors() map[string]chunk.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]chunk.Position, len(s.anchors))
	for name, pos := range s.anchors {
		out[name] = pos
	}
	return out
}

// Run blocks until ctx is cancelled, then performs a final flush bounded by
// the shutdown timeout and returns its error.
func (s *Service) Run(ctx context.Context) error {
	log.Debug("Starting world flush ticker", "interval", s.cfg.FlushInterval)
	flushTicker := time.NewTicker(s.cfg.FlushInterval)
	defer flushTicker.Stop()

	log.Debug("Starting world generation ticker", "interval", s.cfg.GenerateInterval)
	genTicker := time.NewTicker(s.cfg.GenerateInterval)
	defer genTicker.Stop()

	s.generate(ctx)

	log.Debug("Background services running")
	for {
		select {
		case <-ctx.Done():
			log.Info("Background services stopping, flushing world")
			flushCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			return s.manager.Flush(flushCtx)

		case <-flushTicker.C:
			start := time.Now()
			if err := s.manager.Flush(ctx); err != nil {
				log.Error("Failed to flush world", "error", err, "duration", time.Since(start))
			} else {
				log.Debug("World flushed", "duration", time.Since(start))
			}

		case <-genTicker.C:
			s.generate(ctx)
		}
	}
}

func (s *Service) generate(ctx context.Context) {
	anchors := s.Anchors()
	names := make([]string, 0, len(anchors))
	for name := range anchors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.manager.GenerateMissing(ctx, anchors[name], s.generator); err != nil {
			log.Error("Failed to generate around anchor", "error", err, "anchor", name)
		}
	}
}
