package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// Dispatcher delivers an event to its subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

type ReminderSchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// ReminderScheduler fires the daily reminder trigger on a ticker.
type ReminderScheduler struct {
	dispatcher Dispatcher
	config     ReminderSchedulerConfig
	logger     *logger.Logger
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReminderScheduler(dispatcher Dispatcher, config ReminderSchedulerConfig, log *logger.Logger) *ReminderScheduler {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	return &ReminderScheduler{
		dispatcher: dispatcher,
		config:     config,
		logger:     log.With("component", "reminder_scheduler"),
		now:        time.Now,
	}
}

// Register starts the ticker unless it is already running. It reports
// whether a new schedule was created. The schedule outlives ctx, which
// is usually a short activation context; only Unregister stops it.
func (s *ReminderScheduler) Register(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return false
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx, s.done)

	s.logger.ZL.Info().Dur("interval", s.config.Interval).Msg("Reminder schedule registered")
	return true
}

// Unregister stops the ticker and waits for an in-flight pass to return.
func (s *ReminderScheduler) Unregister() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.ZL.Info().Msg("Reminder schedule removed")
}

// Registered reports whether the ticker is running.
func (s *ReminderScheduler) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *ReminderScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.fire(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// Trigger dispatches a single reminder pass outside the ticker.
func (s *ReminderScheduler) Trigger(ctx context.Context) error {
	return s.dispatcher.Dispatch(ctx, &event.Event{Kind: event.KindDailyReminder, OccurredAt: s.now()})
}

func (s *ReminderScheduler) fire(ctx context.Context) {
	if err := s.Trigger(ctx); err != nil {
		s.logger.Error(err, "Reminder pass failed")
	}
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, evt *event.Event) error

func (f DispatchFunc) Dispatch(ctx context.Context, evt *event.Event) error {
	return f(ctx, evt)
}
