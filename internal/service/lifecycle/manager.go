package lifecycle

import (
	"context"
	"fmt"

	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// Seeder writes the default settings record if none exists.
type Seeder interface {
	SeedDefaults(ctx context.Context) (bool, error)
}

// Scheduler owns the recurring reminder trigger.
type Scheduler interface {
	Register(ctx context.Context) bool
	Unregister()
}

// Manager handles add-on activation and deactivation.
type Manager struct {
	seeder    Seeder
	scheduler Scheduler
	logger    *logger.Logger
}

func NewManager(seeder Seeder, scheduler Scheduler, log *logger.Logger) *Manager {
	return &Manager{seeder: seeder, scheduler: scheduler, logger: log.With("component", "lifecycle")}
}

// Subscribe wires activation. Deactivation is only wired for the process
// that owns the schedule; other processes merely stop on shutdown.
func (m *Manager) Subscribe(b *event.Builder) {
	b.On(event.KindActivate, func(ctx context.Context, evt *event.Event) error {
		return m.Activate(ctx)
	})
	if m.scheduler == nil {
		return
	}
	b.On(event.KindDeactivate, func(ctx context.Context, evt *event.Event) error {
		m.Deactivate()
		return nil
	})
}

// Activate seeds default settings and schedules the daily pass. Existing
// settings are left alone. A nil scheduler seeds only.
func (m *Manager) Activate(ctx context.Context) error {
	created, err := m.seeder.SeedDefaults(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}

	registered := false
	if m.scheduler != nil {
		registered = m.scheduler.Register(ctx)
	}

	m.logger.ZL.Info().Bool("settings_seeded", created).Bool("schedule_registered", registered).Msg("Password policy activated")
	return nil
}

// Deactivate removes the schedule. Settings and stored history are kept.
func (m *Manager) Deactivate() {
	if m.scheduler == nil {
		return
	}
	m.scheduler.Unregister()
	m.logger.Info("Password policy deactivated")
}
