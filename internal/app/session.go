package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"waterwatch/internal/clock"
	"waterwatch/internal/config"
	"waterwatch/internal/domain"
	"waterwatch/internal/engine"
	"waterwatch/internal/metrics"
	"waterwatch/internal/notify"
	"waterwatch/internal/notifyqueue"
	"waterwatch/internal/relay"
	"waterwatch/internal/scheduler"
	"waterwatch/internal/state"
	"waterwatch/internal/threshold"
)

const (
	sessionEventBuffer   = 64
	sessionQueueSize     = 64
	shutdownDrainTimeout = 10 * time.Second
)

// ErrSessionClosed is returned by Push after the session stopped.
var ErrSessionClosed = errors.New("session closed")

type eventKind int

const (
	eventReading eventKind = iota
	eventEmpty
	eventTimer
	eventSync
)

type sessionEvent struct {
	kind       eventKind
	reading    domain.Reading
	generation uint64
	at         time.Time
	done       chan struct{}
}

// SessionDeps wires one device session.
// Params: scheduling policy, evaluator, clock, state store, transports, relay publisher and outbox settings.
// Returns: dependency bundle for NewSession.
type SessionDeps struct {
	DeviceID   string
	Policy     scheduler.Policy
	Evaluator  *engine.Evaluator
	Clock      clock.Clock
	Store      state.Store
	Transport  notify.Transport
	Publisher  *relay.Publisher
	Queue      config.NotifyQueue
	StaleAfter time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Session serializes readings and timer firings for one device on a single goroutine.
// Params: dependencies from SessionDeps.
// Returns: reading sink (Push/PushEmpty) plus Run loop and status snapshots.
type Session struct {
	deps       SessionDeps
	logger     *slog.Logger
	transports []notify.Transport
	queue      *notifyqueue.Queue
	events  chan sessionEvent
	done    chan struct{}
	runOnce sync.Once

	// owned by the Run goroutine
	state scheduler.State
	timer clock.Timer

	mu   sync.RWMutex
	view sessionView
}

type sessionView struct {
	hasData       bool
	lastUpdateAt  time.Time
	lastReadingAt time.Time
	reading       domain.Reading
	batch         domain.AlertBatch
	sched         scheduler.State
	nextRepeatAt  time.Time
}

// NewSession creates an idle session and starts its delivery outbox.
// Params: session dependencies.
// Returns: session ready for Run.
func NewSession(deps SessionDeps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Evaluator == nil {
		deps.Evaluator = engine.NewEvaluator(threshold.Default(), engine.DefaultClassifier())
	}
	if deps.Queue.Size <= 0 {
		deps.Queue.Size = sessionQueueSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")
	s := &Session{
		deps:       deps,
		logger:     logger,
		transports: notify.Split(deps.Transport),
		events:     make(chan sessionEvent, sessionEventBuffer),
		done:       make(chan struct{}),
	}
	s.queue = notifyqueue.New(deps.Queue, logger, s.observeJob)
	return s
}

// Push enqueues one reading for evaluation.
// Params: decoded reading.
// Returns: ErrSessionClosed after shutdown.
func (s *Session) Push(reading domain.Reading) error {
	return s.send(sessionEvent{kind: eventReading, reading: reading, at: s.deps.Clock.Now()})
}

// PushEmpty records a feed update without data.
// Params: none.
// Returns: ErrSessionClosed after shutdown.
func (s *Session) PushEmpty() error {
	return s.send(sessionEvent{kind: eventEmpty, at: s.deps.Clock.Now()})
}

// Sync waits until every event sent before the call is processed and its effects executed.
// Params: context bounding the wait.
// Returns: context error or ErrSessionClosed.
func (s *Session) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.send(sessionEvent{kind: eventSync, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.queue.Flush(ctx)
}

func (s *Session) send(ev sessionEvent) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Run restores persisted state and processes events until ctx is done.
// Params: session lifetime context.
// Returns: nil after orderly shutdown; ErrSessionClosed when called twice.
func (s *Session) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return ErrSessionClosed
	}
	defer close(s.done)

	s.restore(ctx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// restore loads fingerprint and last dispatch time; no timer is armed.
func (s *Session) restore(ctx context.Context) {
	if s.deps.Store == nil {
		return
	}
	record, err := s.deps.Store.Load(ctx, s.deps.DeviceID)
	switch {
	case err == nil:
		s.state = scheduler.Restore(record)
		s.logger.Info("notification state restored", "fingerprint", record.Fingerprint, "last_sent_at", record.LastSentAt)
	case errors.Is(err, state.ErrNotFound):
	default:
		s.logger.Warn("notification state restore failed", "error", err.Error())
	}
	s.publishScheduler(time.Time{})
}

func (s *Session) handle(ev sessionEvent) {
	now := s.deps.Clock.Now()
	switch ev.kind {
	case eventReading:
		started := time.Now()
		batch := s.deps.Evaluator.Evaluate(ev.reading)
		s.deps.Metrics.ObserveReading(metrics.ResultOK)
		for _, alert := range batch.Alerts {
			s.deps.Metrics.ObserveAlert(string(alert.Parameter), alert.Severity.String())
		}
		s.mu.Lock()
		s.view.hasData = true
		s.view.lastUpdateAt = ev.at
		s.view.lastReadingAt = ev.at
		s.view.reading = ev.reading
		s.view.batch = batch
		s.mu.Unlock()

		next, effects := s.deps.Policy.OnBatch(s.state, batch, now)
		s.transition(next, effects, now)
		s.deps.Metrics.ObserveEvaluation(time.Since(started).Seconds())
	case eventEmpty:
		s.deps.Metrics.ObserveReading(metrics.ResultNoData)
		s.mu.Lock()
		s.view.hasData = false
		s.view.lastUpdateAt = ev.at
		s.mu.Unlock()
	case eventTimer:
		next, effects := s.deps.Policy.OnTimer(s.state, ev.generation, now)
		s.transition(next, effects, now)
	case eventSync:
		close(ev.done)
	}
}

// transition commits next state and executes effects in order.
func (s *Session) transition(next scheduler.State, effects []scheduler.Effect, now time.Time) {
	s.state = next
	var nextRepeat time.Time
	for _, effect := range effects {
		switch effect.Kind {
		case scheduler.EffectStopTimer:
			s.stopTimer()
		case scheduler.EffectStartTimer:
			s.stopTimer()
			generation := effect.Generation
			s.timer = s.deps.Clock.AfterFunc(effect.Delay, func() {
				_ = s.send(sessionEvent{kind: eventTimer, generation: generation})
			})
			nextRepeat = now.Add(effect.Delay)
		case scheduler.EffectDisplay:
			notification := effect.Notification
			s.logger.Info("notification dispatched",
				"title", notification.Title,
				"critical", notification.Critical,
				"repeat", notification.Repeat,
			)
			s.enqueueTransports("display", func(ctx context.Context, transport notify.Transport) error {
				return transport.Display(ctx, notification)
			})
		case scheduler.EffectCancelDisplay:
			id := effect.Notification.ID
			s.logger.Info("notification cancelled", "id", id)
			s.enqueueTransports("cancel", func(ctx context.Context, transport notify.Transport) error {
				return transport.Cancel(ctx, id)
			})
		case scheduler.EffectPersist:
			record := effect.Record
			s.enqueueStore("persist", func(ctx context.Context, store state.Store) error {
				return store.Save(ctx, s.deps.DeviceID, record)
			})
		case scheduler.EffectClearPersisted:
			s.enqueueStore("clear", func(ctx context.Context, store state.Store) error {
				return store.Clear(ctx, s.deps.DeviceID)
			})
		case scheduler.EffectRelay:
			if s.deps.Publisher == nil {
				continue
			}
			batch := effect.Batch
			s.enqueue("relay", func(ctx context.Context) error {
				_, _, err := s.deps.Publisher.Publish(ctx, batch, now)
				return err
			})
		}
	}
	s.publishScheduler(nextRepeat)
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// enqueueTransports queues one job per transport; a retry repeats only the failed transport.
func (s *Session) enqueueTransports(kind string, run func(ctx context.Context, transport notify.Transport) error) {
	for _, transport := range s.transports {
		transport := transport
		s.enqueue(kind, func(ctx context.Context) error {
			if err := run(ctx, transport); err != nil {
				return fmt.Errorf("%s: %w", transport.Name(), err)
			}
			return nil
		})
	}
}

func (s *Session) enqueue(kind string, run func(ctx context.Context) error) {
	err := s.queue.Enqueue(notifyqueue.Job{Kind: kind, Run: func(ctx context.Context) error {
		err := run(ctx)
		if notify.IsPermissionDenied(err) {
			return notifyqueue.MarkPermanent(err)
		}
		return err
	}})
	if err != nil {
		s.logger.Warn("side effect dropped", "kind", kind, "error", err.Error())
		s.deps.Metrics.ObserveNotification(kind, metrics.ResultError)
	}
}

func (s *Session) enqueueStore(kind string, run func(ctx context.Context, store state.Store) error) {
	if s.deps.Store == nil {
		return
	}
	store := s.deps.Store
	s.enqueue(kind, func(ctx context.Context) error {
		return run(ctx, store)
	})
}

// observeJob records final outbox outcomes; failures never reach the scheduler.
func (s *Session) observeJob(job notifyqueue.Job, _ int, err error) {
	switch {
	case err == nil:
		s.deps.Metrics.ObserveNotification(job.Kind, metrics.ResultOK)
	case notify.IsPermissionDenied(err):
		s.logger.Warn("notification permission denied", "kind", job.Kind, "error", err.Error())
		s.deps.Metrics.ObserveNotification(job.Kind, metrics.ResultDenied)
	default:
		s.deps.Metrics.ObserveNotification(job.Kind, metrics.ResultError)
	}
}

func (s *Session) publishScheduler(nextRepeat time.Time) {
	s.deps.Metrics.SetSchedulerActive(s.state.Active())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.sched = s.state
	if !s.state.Active() {
		s.view.nextRepeatAt = time.Time{}
	} else if !nextRepeat.IsZero() {
		s.view.nextRepeatAt = nextRepeat
	}
}

// shutdown stops the repeating timer and drains the outbox.
func (s *Session) shutdown() {
	next, effects := s.deps.Policy.OnShutdown(s.state)
	s.transition(next, effects, s.deps.Clock.Now())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownDrainTimeout)
	defer cancel()
	if err := s.queue.Close(ctx); err != nil {
		s.logger.Warn("outbox drain incomplete", "error", err.Error())
	}
	s.logger.Info("session stopped")
}
