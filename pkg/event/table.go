package event

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoHandler is returned when dispatching a kind nobody subscribed to.
var ErrNoHandler = errors.New("no handler registered")

// Handler processes one event.
type Handler func(ctx context.Context, evt *Event) error

// Builder collects subscriptions before the table is frozen.
type Builder struct {
	handlers map[Kind][]Handler
}

func NewBuilder() *Builder {
	return &Builder{handlers: make(map[Kind][]Handler)}
}

// On subscribes h to kind. Handlers for the same kind run in
// subscription order.
func (b *Builder) On(kind Kind, h Handler) *Builder {
	b.handlers[kind] = append(b.handlers[kind], h)
	return b
}

// Build freezes the subscriptions. The returned table is read-only and
// safe for concurrent use.
func (b *Builder) Build() *Table {
	frozen := make(map[Kind][]Handler, len(b.handlers))
	for kind, hs := range b.handlers {
		frozen[kind] = append([]Handler(nil), hs...)
	}
	return &Table{handlers: frozen}
}

// Table maps event kinds to their handlers.
type Table struct {
	handlers map[Kind][]Handler
}

// Has reports whether kind has at least one handler.
func (t *Table) Has(kind Kind) bool {
	return len(t.handlers[kind]) > 0
}

// Dispatch runs every handler for evt.Kind. A failing handler does not
// stop the others; their errors are joined.
func (t *Table) Dispatch(ctx context.Context, evt *Event) error {
	hs, ok := t.handlers[evt.Kind]
	if !ok || len(hs) == 0 {
		return fmt.Errorf("%w for %q", ErrNoHandler, evt.Kind)
	}
	if evt.Errors == nil {
		evt.Errors = &ErrorCollector{}
	}

	var errs []error
	for _, h := range hs {
		if err := h(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
