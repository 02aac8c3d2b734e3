package bus

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_, _ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_, _ string, handlers int, err error, _ time.Duration) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("agent.arrived", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("agent.arrived", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil || got.Data() != 123 || got.Source() != "tester" {
		t.Fatalf("handler not called with event: %#v", got)
	}
}

func TestDeliveryOrderAndErrorsJoined(t *testing.T) {
	b := New()
	e1 := errors.New("first")
	e2 := errors.New("second")
	var order []int
	_, _ = b.Subscribe("x", func(Event) error { order = append(order, 1); return e1 })
	_, _ = b.Subscribe("x", func(Event) error { order = append(order, 2); return nil })
	_, _ = b.Subscribe("x", func(Event) error { order = append(order, 3); return e2 })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	if err := b.CreateTopic("t1"); err != nil {
		t.Fatalf("topic: %v", err)
	}
	count1 := 0
	count2 := 0
	_, _ = b.SubscribeTopic("t1", "ev", func(e Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(e Event) error { count2++; return nil })
	_ = b.PublishToTopic("t1", NewEvent("ev", "src", nil))
	if count1 != 1 || count2 != 0 {
		t.Fatalf("topic isolation failed: %d %d", count1, count2)
	}

	topics := b.Topics()
	if len(topics) != 3 || topics[0].Name != "" || topics[1].Name != "t1" || topics[1].Subs != 1 {
		t.Fatalf("unexpected topics: %+v", topics)
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	var types []string
	_, _ = b.SubscribeTopic("sim", Wildcard, func(e Event) error {
		types = append(types, e.Type())
		return nil
	})
	_ = b.PublishToTopic("sim", NewEvent("frame", "w", nil))
	_ = b.PublishToTopic("sim", NewEvent("agent.arrived", "w", nil))
	_ = b.PublishToTopic("other", NewEvent("frame", "w", nil))

	if len(types) != 2 || types[0] != "frame" || types[1] != "agent.arrived" {
		t.Fatalf("wildcard delivery mismatch: %v", types)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub, _ := b.Subscribe("e", func(Event) error { calls++; return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = sub.Cancel()
	_ = b.Publish(NewEvent("e", "s", nil))

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil))
	if m := b.Metrics(); m.Published != 0 || m.DeliveredHandlers != 0 {
		t.Fatalf("metrics should be zero without observers: %+v", m)
	}

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	m := b.Metrics()
	if m.Published != 1 || m.DeliveredHandlers != 1 || m.SubscribersActive != 1 {
		t.Fatalf("metrics should update with observer: %+v", m)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 1 {
		t.Fatalf("observer not called: %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil))
	if obs.publishCount != 1 {
		t.Fatal("removed observer still notified")
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, _ := b.Subscribe("c", func(Event) error { return nil })
			_ = sub.Cancel()
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Publish(NewEvent("c", "s", j))
			}
		}()
	}
	wg.Wait()
}
