package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine owns the collaborators every unit of work needs: the transactional
// store, the propagation job queue, the function evaluator, and the change
// notifier. It is safe for concurrent use; all state lives in the store.
type Engine struct {
	store    Store
	queue    JobQueue
	funcs    FuncEvaluator
	notifier Notifier
	logger   zerolog.Logger
	clock    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the change notifier. Defaults to NopNotifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With().Str("component", "engine").Logger() }
}

// WithClock overrides the time source. Tests use it for deterministic rows.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New creates an Engine. The func evaluator is injected rather than resolved
// from global state so tests can supply a deterministic stub.
func New(store Store, queue JobQueue, funcs FuncEvaluator, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		queue:    queue,
		funcs:    funcs,
		notifier: NopNotifier{},
		logger:   zerolog.Nop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Unit is one ambient transaction. Every mutation in this package hangs off a
// Unit; either all of a unit's writes commit or none do. Propagation roots
// accumulate on the unit and are enqueued only after a successful commit, so
// the queue never sees ids from a rolled-back transaction.
type Unit struct {
	engine *Engine
	tx     Tx
	id     string
	roots  []AttributeValueID
	seen   map[AttributeValueID]struct{}
	events []func(context.Context)
	done   bool
}

// Begin starts a new unit of work.
func (e *Engine) Begin(ctx context.Context) (*Unit, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, NewStoreError("failed to begin unit of work", err)
	}
	return &Unit{
		engine: e,
		tx:     tx,
		id:     uuid.New().String(),
		seen:   make(map[AttributeValueID]struct{}),
	}, nil
}

// ID returns the unit identifier used in change notifications.
func (u *Unit) ID() string {
	return u.id
}

// EnqueueRoot records attribute values as propagation roots for this unit.
// Duplicates are dropped; ordering is first-seen.
func (u *Unit) EnqueueRoot(ids ...AttributeValueID) {
	for _, id := range ids {
		if id == NoneAttributeValueID {
			continue
		}
		if _, ok := u.seen[id]; ok {
			continue
		}
		u.seen[id] = struct{}{}
		u.roots = append(u.roots, id)
	}
}

// Roots returns the propagation roots accumulated so far.
func (u *Unit) Roots() []AttributeValueID {
	out := make([]AttributeValueID, len(u.roots))
	copy(out, u.roots)
	return out
}

// notifyValueChanged buffers the notification until the unit commits, so a
// rolled-back unit emits nothing.
func (u *Unit) notifyValueChanged(id AttributeValueID) {
	u.events = append(u.events, func(ctx context.Context) {
		u.engine.notifier.ValueChanged(ctx, id)
	})
}

// notifyFrameConnected buffers the notification until the unit commits.
func (u *Unit) notifyFrameConnected(parent, child ComponentID) {
	u.events = append(u.events, func(ctx context.Context) {
		u.engine.notifier.FrameConnected(ctx, parent, child)
	})
}

// Commit commits the unit's transaction, then enqueues the accumulated
// propagation roots and publishes the buffered change notifications. Enqueue
// failures after a successful commit are logged and returned as store errors;
// the committed data stands.
func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return NewValidationError("unit of work already finished", nil).WithCode(ErrCodeUnitDone)
	}
	u.done = true

	if err := u.tx.Commit(ctx); err != nil {
		return NewStoreError("failed to commit unit of work", err).WithDetail("unit_id", u.id)
	}

	if len(u.roots) > 0 {
		update := DependentValuesUpdate{
			ID:                    uuid.New().String(),
			RootAttributeValueIDs: u.Roots(),
			EnqueuedAt:            u.engine.clock(),
		}
		if err := u.engine.queue.Enqueue(ctx, update); err != nil {
			u.engine.logger.Error().Err(err).
				Str("unit_id", u.id).
				Int("roots", len(u.roots)).
				Msg("failed to enqueue dependent values update after commit")
			return NewStoreError("committed but failed to enqueue propagation roots", err).
				WithDetail("unit_id", u.id)
		}
	}

	for _, emit := range u.events {
		emit(ctx)
	}
	u.engine.notifier.ChangeSetWritten(ctx, u.id, u.Roots())
	u.engine.logger.Debug().
		Str("unit_id", u.id).
		Int("roots", len(u.roots)).
		Msg("unit of work committed")
	return nil
}

// Rollback aborts the unit. Roots accumulated so far are discarded. Safe to
// call after Commit; it then does nothing.
func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil {
		return NewStoreError("failed to roll back unit of work", err).WithDetail("unit_id", u.id)
	}
	return nil
}

// WithUnit runs fn inside a fresh unit of work, committing on success and
// rolling back on error.
func (e *Engine) WithUnit(ctx context.Context, fn func(u *Unit) error) error {
	u, err := e.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(u); err != nil {
		if rbErr := u.Rollback(ctx); rbErr != nil {
			e.logger.Error().Err(rbErr).Str("unit_id", u.id).Msg("rollback failed")
		}
		return err
	}
	return u.Commit(ctx)
}

// newID returns a fresh identifier for a row.
func newID() string {
	return uuid.New().String()
}

// now returns the engine's current time, truncated for stable comparisons
// across store round-trips.
func (u *Unit) now() time.Time {
	return u.engine.clock().UTC().Truncate(time.Microsecond)
}
