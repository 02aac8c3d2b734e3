package bus

import "time"

// Wildcard subscribes a handler to every event type within a topic.
const Wildcard = "*"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// - Handlers subscribe by Event.Type() within a topic; the default topic is "".
// - Delivery is synchronous, in the publisher's goroutine, in subscription order.
// - Handler errors are joined and returned from Publish.
// - Metrics are collected only while at least one observer is registered.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Type() in the default topic.
	Publish(event Event) error
	// PublishToTopic delivers to subscribers within topic.
	PublishToTopic(topic string, event Event) error

	// Subscribe registers a handler in the default topic.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeTopic registers a handler for eventType (or Wildcard) within topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the subscription. Nil is a no-op.
	Unsubscribe(Subscription) error

	// CreateTopic declares a topic; repeat declarations are no-ops.
	CreateTopic(name string) error
	Topics() []TopicInfo

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Metrics() Metrics
}

// Event is an immutable message transported by the bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries. Observers should return quickly.
type Observer interface {
	OnPublish(topic, eventType string, event Event)
	OnDelivered(topic, eventType string, handlers int, err error, elapsed time.Duration)
}

// Metrics is a snapshot of bus counters, updated only while observed.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
	Topics            uint64
}

// TopicInfo describes one topic.
type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
