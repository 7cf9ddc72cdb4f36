// Package feature ties a link feature to its persisted activation flag.
//
// A Synchronizer is Inactive or Active. Turning the flag on shows the
// status overlay, attaches the insertion watcher and scans the page;
// turning it off detaches the watcher, cancels in-flight work, restores
// every link and removes the overlay.
package feature

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hazyhaar/linkguard/engine"
	"github.com/hazyhaar/linkguard/watcher"
)

// Config wires a Synchronizer.
type Config struct {
	Flag   string
	Engine *engine.Engine
	State  *engine.RunState
	Store  FlagStore
	Logger *slog.Logger
	// OnTransition, if set, runs after each completed transition.
	OnTransition func(flag string, active bool)
}

// Synchronizer follows one activation flag.
type Synchronizer struct {
	cfg     Config
	logger  *slog.Logger
	watcher *watcher.Watcher

	active   atomic.Bool
	follower *Follower

	// Owned by the follower goroutine.
	cancelRun context.CancelFunc
	scans     sync.WaitGroup
}

// New creates a stopped Synchronizer.
func New(cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{cfg: cfg, logger: logger.With("feature", cfg.Engine.Config().Name)}
	s.watcher = watcher.New(cfg.Engine.Document(), cfg.Engine, cfg.State, s.active.Load, s.logger)
	return s
}

// Start bootstraps from the stored flag and follows its changes until
// Stop or ctx ends.
func (s *Synchronizer) Start(ctx context.Context) {
	s.follower = Follow(ctx, s.cfg.Store, s.cfg.Flag, s.transition, s.logger)
}

// Stop stops following and deactivates if needed.
func (s *Synchronizer) Stop(ctx context.Context) {
	if s.follower != nil {
		s.follower.Stop(ctx)
	}
}

// Active reports the current state.
func (s *Synchronizer) Active() bool { return s.active.Load() }

// Flag returns the activation flag key.
func (s *Synchronizer) Flag() string { return s.cfg.Flag }

// State returns the run state.
func (s *Synchronizer) State() *engine.RunState { return s.cfg.State }

// Engine returns the feature engine.
func (s *Synchronizer) Engine() *engine.Engine { return s.cfg.Engine }

// Settle waits for the running scan and insertion deltas.
func (s *Synchronizer) Settle() {
	s.scans.Wait()
	s.watcher.Wait()
}

func (s *Synchronizer) transition(ctx context.Context, active bool) {
	if active {
		s.activate(ctx)
	} else {
		s.deactivate(ctx)
	}
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(s.cfg.Flag, active)
	}
}

func (s *Synchronizer) activate(ctx context.Context) {
	st := s.cfg.State
	st.Reset()
	if st.Indicator != nil {
		st.Indicator.Show()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.active.Store(true)

	// Attach before scanning so links inserted during the scan are not
	// missed; a link seen by both is decorated the same way twice.
	if err := s.watcher.Attach(runCtx); err != nil {
		s.logger.Warn("feature: watcher attach failed", "error", err)
	}

	s.scans.Add(1)
	go func() {
		defer s.scans.Done()
		if err := s.cfg.Engine.UpdateAllLinks(runCtx, st, true); err != nil {
			s.logger.Error("feature: scan failed", "error", err)
		}
	}()
	s.logger.Info("feature: activated")
}

func (s *Synchronizer) deactivate(ctx context.Context) {
	st := s.cfg.State
	s.active.Store(false)
	// Invalidate results still in flight before they land.
	st.Reset()
	s.watcher.Detach()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.Settle()

	ctx = context.WithoutCancel(ctx)
	if err := s.cfg.Engine.UpdateAllLinks(ctx, st, false); err != nil {
		s.logger.Error("feature: reset failed", "error", err)
	}
	if st.Indicator != nil {
		st.Indicator.Teardown(ctx)
	}
	st.Reset()
	s.logger.Info("feature: deactivated")
}
