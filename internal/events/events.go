// Package events carries wizard session notifications to interested listeners.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/datalab/connectctl/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventLog         EventType = "log"
	EventStepChanged EventType = "step_changed"
	EventValidation  EventType = "validation"
	EventCommit      EventType = "commit"
	EventCredentials EventType = "credentials"
	EventClosed      EventType = "closed"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Error   error
}

// StepChangedEvent is published when the wizard moves between steps.
type StepChangedEvent struct {
	BaseEvent
	From           string
	To             string
	CompletedSteps int
	AdvancedMode   bool
}

// ValidationEvent reports the outcome of a connection test.
// Status is "pending", "succeeded", "failed", "superseded" or "reset".
type ValidationEvent struct {
	BaseEvent
	Generation uint64
	Status     string
	Error      error
}

// CommitEvent reports the outcome of creating or updating a storage.
type CommitEvent struct {
	BaseEvent
	StorageID string
	Created   bool
	Error     error
}

// CredentialsEvent reports a secret save or delete after a commit.
// Action is "saved", "deleted" or "failed".
type CredentialsEvent struct {
	BaseEvent
	StorageID string
	Action    string
	Fields    []string
	Error     error
}

// ClosedEvent is published when a session is closed.
type ClosedEvent struct {
	BaseEvent
	Success bool
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events for a
// full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: base(EventLog),
		Level:     level,
		Message:   message,
		Error:     err,
	})
}

// PublishStepChanged is a convenience method for publishing step changes
func (eb *EventBus) PublishStepChanged(from, to string, completed int, advanced bool) {
	eb.Publish(&StepChangedEvent{
		BaseEvent:      base(EventStepChanged),
		From:           from,
		To:             to,
		CompletedSteps: completed,
		AdvancedMode:   advanced,
	})
}

// PublishValidation is a convenience method for publishing connection test updates
func (eb *EventBus) PublishValidation(generation uint64, status string, err error) {
	eb.Publish(&ValidationEvent{
		BaseEvent:  base(EventValidation),
		Generation: generation,
		Status:     status,
		Error:      err,
	})
}

// PublishCommit is a convenience method for publishing create/update outcomes
func (eb *EventBus) PublishCommit(storageID string, created bool, err error) {
	eb.Publish(&CommitEvent{
		BaseEvent: base(EventCommit),
		StorageID: storageID,
		Created:   created,
		Error:     err,
	})
}

// PublishCredentials is a convenience method for publishing secret mutations
func (eb *EventBus) PublishCredentials(storageID, action string, fields []string, err error) {
	eb.Publish(&CredentialsEvent{
		BaseEvent: base(EventCredentials),
		StorageID: storageID,
		Action:    action,
		Fields:    fields,
		Error:     err,
	})
}

// PublishClosed is a convenience method for publishing session close
func (eb *EventBus) PublishClosed(success bool) {
	eb.Publish(&ClosedEvent{BaseEvent: base(EventClosed), Success: success})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
