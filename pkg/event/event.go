// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event
type Type string

// Session event types
const (
	SessionStarted  Type = "session_started"
	SessionReset    Type = "session_reset"
	ProfileSelected Type = "profile_selected"
	ThrustTick      Type = "thrust_tick"
	RotationStart   Type = "rotation_start"
	LandingSuccess  Type = "landing_success"
	Crash           Type = "crash"
	HazardSpawned   Type = "hazard_spawned"
	HighScore       Type = "high_score"
	LevelUnlocked   Type = "level_unlocked"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type        `json:"type"`
	Source    interface{} `json:"-"`
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it.
type Subscription struct {
	ID     uint64
	Type   Type
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

// SubscribeAll registers handler for every listed type and returns a
// function that cancels all of them.
func (b *Bus) SubscribeAll(handler Handler, types ...Type) func() {
	subs := make([]*Subscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, b.Subscribe(t, handler))
	}
	return func() {
		for _, s := range subs {
			s.Cancel()
		}
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribed handlers. Handlers run on the
// caller's goroutine in subscription order.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	handlers := make([]Handler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Specific event implementations

// SessionEvent carries the session and simulation time of an event.
type SessionEvent struct {
	BaseEvent
	SessionID string  `json:"session"`
	Profile   string  `json:"profile"`
	Tick      uint64  `json:"tick"`
	Elapsed   float64 `json:"elapsed"`
}

// NewSessionEvent creates a new session event
func NewSessionEvent(eventType Type, source interface{}, sessionID, profile string, tick uint64, elapsed float64) *SessionEvent {
	return &SessionEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		SessionID: sessionID,
		Profile:   profile,
		Tick:      tick,
		Elapsed:   elapsed,
	}
}

// ThrustEvent is published for every tick the engine fires.
type ThrustEvent struct {
	SessionEvent
	Fuel float64 `json:"fuel"`
}

// LandingEvent describes a terminal outcome.
type LandingEvent struct {
	SessionEvent
	Target string `json:"target,omitempty"`
	Cause  string `json:"cause"`
	Score  int    `json:"score"`
	Stars  int    `json:"stars"`
}

// HazardEvent reports a debris eruption.
type HazardEvent struct {
	SessionEvent
	Count int `json:"count"`
}

// ScoreEvent is published by the score board for new table entries and
// campaign unlocks. Level is set for unlocks only.
type ScoreEvent struct {
	BaseEvent
	Profile string `json:"profile"`
	Label   string `json:"label,omitempty"`
	Score   int    `json:"score"`
	Rank    int    `json:"rank,omitempty"`
	Level   int    `json:"level,omitempty"`
}
