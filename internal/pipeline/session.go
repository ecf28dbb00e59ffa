package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// Session is one loaded stack and its current Result.
//
// Thread Safety: all methods are safe for concurrent use. Results handed out
// by Current are immutable and remain usable after later rebuilds.
type Session struct {
	// rebuildMu serializes rebuilds. mu only guards the swap.
	rebuildMu sync.Mutex
	mu        sync.RWMutex

	source string
	frames []*refine.Frame
	result *Result
	epoch  uint64
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSource records where the frames were loaded from.
func WithSource(source string) SessionOption {
	return func(s *Session) {
		s.source = source
	}
}

func newSession(frames []*refine.Frame, opts []SessionOption) *Session {
	s := &Session{frames: frames, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession builds frames under cfg and returns a session at epoch 1.
func NewSession(ctx context.Context, frames []*refine.Frame, cfg config.Config, opts ...SessionOption) (*Session, error) {
	s := newSession(frames, opts)
	start := time.Now()
	res, err := BuildStack(ctx, frames, cfg)
	if err != nil {
		return nil, err
	}
	s.install(res)
	s.logBuild("stack built", config.ScopeRefine, start)
	return s, nil
}

// OpenSession restores snap for frames when it is still valid and applies
// whatever rebuild cfg requires on top of it. A snapshot for a stack of a
// different length is discarded and the stack is built from scratch.
//
// Returns the session and whether the snapshot was used.
func OpenSession(ctx context.Context, frames []*refine.Frame, snap *Snapshot, cfg config.Config, opts ...SessionOption) (*Session, bool, error) {
	if snap == nil {
		s, err := NewSession(ctx, frames, cfg, opts...)
		return s, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	if err := refine.ValidateStack(frames); err != nil {
		return nil, false, err
	}

	s := newSession(frames, opts)
	res, err := Restore(snap, len(frames))
	if err == nil {
		err = snap.CheckStack(frames)
	}
	if errors.Is(err, ErrStalePersistedGraph) {
		s.logger.Warn("discarding persisted graph",
			slog.String("source", s.source),
			slog.String("error", err.Error()),
		)
		s, err = NewSession(ctx, frames, cfg, opts...)
		return s, false, err
	}
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	scope := config.Diff(res.Config, cfg)
	if scope != config.ScopeNone || res.Config != cfg {
		res, err = Rebuild(ctx, res, frames, cfg, scope)
		if err != nil {
			return nil, false, err
		}
	}
	s.install(res)
	s.logBuild("stack restored", scope, start)
	return s, true, nil
}

// Current returns the latest Result and its epoch.
func (s *Session) Current() (*Result, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.epoch
}

// Epoch returns the number of results installed so far.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Source returns where the frames came from, if known.
func (s *Session) Source() string {
	return s.source
}

// FrameCount returns the stack length.
func (s *Session) FrameCount() int {
	return len(s.frames)
}

// Reconfigure moves the session to cfg, rebuilding only what the change
// invalidates. An invalid cfg or a failed rebuild leaves the current Result
// and epoch untouched.
//
// Returns the scope that was rebuilt.
func (s *Session) Reconfigure(ctx context.Context, cfg config.Config) (config.Scope, error) {
	if err := cfg.Validate(); err != nil {
		return config.ScopeNone, err
	}
	return s.Update(ctx, func(config.Config) config.Config { return cfg })
}

// Update derives the next configuration from the current one and moves the
// session to it, as Reconfigure does. edit runs while rebuilds are held off,
// so concurrent updates each see the configuration left by the previous one.
func (s *Session) Update(ctx context.Context, edit func(config.Config) config.Config) (config.Scope, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	cur, _ := s.Current()
	cfg := edit(cur.Config)
	if err := cfg.Validate(); err != nil {
		return config.ScopeNone, err
	}
	scope := config.Diff(cur.Config, cfg)
	if cur.Config == cfg {
		return config.ScopeNone, nil
	}

	start := time.Now()
	next, err := Rebuild(ctx, cur, s.frames, cfg, scope)
	if err != nil {
		s.logger.Error("rebuild failed",
			slog.String("scope", scope.String()),
			slog.String("error", err.Error()),
		)
		return scope, err
	}
	s.install(next)
	s.logBuild("stack rebuilt", scope, start)
	return scope, nil
}

// Snapshot returns the persisted form of the current Result.
func (s *Session) Snapshot() *Snapshot {
	cur, _ := s.Current()
	return cur.Snapshot()
}

func (s *Session) install(res *Result) {
	s.mu.Lock()
	s.result = res
	s.epoch++
	s.mu.Unlock()
}

func (s *Session) logBuild(msg string, scope config.Scope, start time.Time) {
	res, epoch := s.Current()
	children, siblings := res.Graph.EdgeCounts()
	s.logger.Info(msg,
		slog.String("source", s.source),
		slog.String("scope", scope.String()),
		slog.Int("frames", res.FrameCount()),
		slog.Int("features", res.Graph.Len()),
		slog.Int("child_edges", children),
		slog.Int("sibling_pairs", siblings),
		slog.Uint64("epoch", epoch),
		slog.Duration("elapsed", time.Since(start)),
	)
}
