package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a class of event emitted by the SDK.
type Type string

const (
	// Authenticated is emitted after a successful credential exchange.
	Authenticated Type = "authenticated"

	// AuthenticationFailure is emitted when a credential exchange is rejected.
	AuthenticationFailure Type = "authentication_failure"

	// SessionEnd is emitted after the local token has been removed as part
	// of revocation or logout.
	SessionEnd Type = "session_end"

	// OAuthRequestError is emitted by the response interceptor when an API
	// request fails with a terminal OAuth error.
	OAuthRequestError Type = "oauth_request_error"

	// StateChangeUnauthorized is emitted when a navigation transition is
	// cancelled because the principal lacks a required group or authority.
	StateChangeUnauthorized Type = "state_change_unauthorized"

	// StateChangeUnauthenticated is emitted when a navigation transition is
	// cancelled because no principal could be established.
	StateChangeUnauthenticated Type = "state_change_unauthenticated"

	// MFARequired is emitted when the identity provider demands a factor
	// challenge before issuing a token.
	MFARequired Type = "mfa_required"
)

// Event is a single occurrence delivered to subscribers.
type Event struct {
	ID      uuid.UUID
	Type    Type
	Time    time.Time
	Payload any
}

// subscriberBufferSize is the per-subscriber channel capacity. Slow consumers
// drop events once the buffer is full.
const subscriberBufferSize = 16

type subscriber struct {
	ch    chan Event
	types map[Type]struct{} // empty means all types
}

func (s *subscriber) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus is a typed publish/subscribe hub. The zero value is not usable; create
// one with NewBus. A Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel that receives events of the given types, or of
// all types when none are given. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe(types ...Type) (<-chan Event, func()) {
	sub := &subscriber{
		ch:    make(chan Event, subscriberBufferSize),
		types: make(map[Type]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Notify registers a callback invoked for every matching event. The callback
// runs on a dedicated goroutine, in publish order for that subscription. The
// returned cancel function stops delivery.
func (b *Bus) Notify(fn func(Event), types ...Type) func() {
	ch, cancel := b.Subscribe(types...)
	go func() {
		for ev := range ch {
			fn(ev)
		}
	}()
	return cancel
}

// Publish delivers an event to all matching subscribers without blocking.
// Events that cannot be buffered are dropped.
func (b *Bus) Publish(t Type, payload any) {
	ev := Event{
		ID:      uuid.New(),
		Type:    t,
		Time:    time.Now(),
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(t) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("event dropped for slow subscriber",
				"event_type", string(t),
				"event_id", ev.ID.String(),
			)
		}
	}
}
