// Package events provides the in-process pub/sub bus that fans simulation
// events out to the websocket layer and other listeners.
package events

import (
	"sync"
	"time"
)

// EventType labels the events the simulators emit.
type EventType string

const (
	EventOrderFilled       EventType = "ORDER_FILLED"
	EventOrderRejected     EventType = "ORDER_REJECTED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventEquityUpdate      EventType = "EQUITY_UPDATE"
	EventKillSwitchTripped EventType = "KILL_SWITCH_TRIPPED"
	EventKillSwitchReset   EventType = "KILL_SWITCH_RESET"
	EventBacktestFinished  EventType = "BACKTEST_FINISHED"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles a delivered event.
type Subscriber func(Event)

// EventBus manages subscriptions and delivery. Delivery is synchronous and
// in subscription order; subscribers must not block.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event type.
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish delivers an event to matching subscribers. The timestamp is set
// if the caller left it zero.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eb.mu.RLock()
	subs := make([]Subscriber, 0, len(eb.subscribers[event.Type])+len(eb.allSubs))
	subs = append(subs, eb.subscribers[event.Type]...)
	subs = append(subs, eb.allSubs...)
	eb.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}
}
