// Package events delivers session state changes to subscribers over the
// rpg-toolkit event bus
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/core"
	rpgevents "github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

//go:generate mockgen -destination=mock/mock_notifier.go -package=eventsmock github.com/KirkDiggler/rpg-sheet/internal/events Notifier

const (
	// EventStateChanged is published once per state-changing mutation
	EventStateChanged = "sheet.state_changed"

	// ContextKeyState holds the *sheet.SessionState carried by the event
	ContextKeyState = "state"

	dispatchPriority = 100
)

// Listener receives a copy of the session state after each change
type Listener func(ctx context.Context, state *sheet.SessionState) error

// Notifier fans state changes out to listeners
type Notifier interface {
	// Subscribe registers a listener and returns its subscription ID
	Subscribe(listener Listener) string

	// Unsubscribe removes a listener. Unknown IDs return a NotFound error.
	Unsubscribe(id string) error

	// Publish delivers state to every listener in subscription order
	Publish(ctx context.Context, source core.Entity, state *sheet.SessionState) error
}

type subscription struct {
	id       string
	listener Listener
}

// Bus implements Notifier on top of an rpg-toolkit bus. A single dispatch
// handler is registered on the bus; it calls listeners in the order they
// subscribed. Listener errors are logged and do not stop delivery.
type Bus struct {
	bus        *rpgevents.Bus
	dispatchID string

	mu            sync.RWMutex
	nextID        int
	subscriptions []subscription
}

// NewBus creates a Notifier. A nil bus gets a fresh rpg-toolkit bus.
func NewBus(bus *rpgevents.Bus) *Bus {
	if bus == nil {
		bus = rpgevents.NewBus()
	}

	b := &Bus{bus: bus}
	b.dispatchID = bus.SubscribeFunc(EventStateChanged, dispatchPriority, b.dispatch)
	return b
}

var _ Notifier = (*Bus)(nil)

// RPGBus returns the underlying rpg-toolkit bus for direct subscriptions
func (b *Bus) RPGBus() *rpgevents.Bus {
	return b.bus
}

// Subscribe implements Notifier
func (b *Bus) Subscribe(listener Listener) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := fmt.Sprintf("state-listener-%d", b.nextID)
	b.subscriptions = append(b.subscriptions, subscription{id: id, listener: listener})
	return id
}

// Unsubscribe implements Notifier
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i], b.subscriptions[i+1:]...)
			return nil
		}
	}
	return errors.NotFoundf("subscription %s not found", id)
}

// Publish implements Notifier
func (b *Bus) Publish(ctx context.Context, source core.Entity, state *sheet.SessionState) error {
	if state == nil {
		return errors.InvalidArgument("state is required")
	}

	event := rpgevents.NewGameEvent(EventStateChanged, source, nil)
	event.Context().Set(ContextKeyState, state.Clone())

	if err := b.bus.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish state change")
	}
	return nil
}

// Close removes the dispatch handler from the underlying bus
func (b *Bus) Close() error {
	if err := b.bus.Unsubscribe(b.dispatchID); err != nil {
		return errors.Wrap(err, "failed to detach from event bus")
	}
	return nil
}

func (b *Bus) dispatch(ctx context.Context, event rpgevents.Event) error {
	value, ok := event.Context().Get(ContextKeyState)
	if !ok {
		slog.WarnContext(ctx, "State change event without state", "event", EventStateChanged)
		return nil
	}
	state, ok := value.(*sheet.SessionState)
	if !ok || state == nil {
		slog.WarnContext(ctx, "State change event with unexpected payload", "type", fmt.Sprintf("%T", value))
		return nil
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subscriptions))
	copy(subs, b.subscriptions)
	b.mu.RUnlock()

	for _, sub := range subs {
		// each listener gets its own copy
		if err := sub.listener(ctx, state.Clone()); err != nil {
			slog.ErrorContext(ctx, "State listener failed",
				"subscription_id", sub.id,
				"last_updated", state.LastUpdated,
				"error", err)
		}
	}
	return nil
}
