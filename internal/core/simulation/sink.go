package simulation

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/zeusync/boids/internal/core/events/bus"
)

const (
	TopicFrames = "frames"
	EventFrame  = "frame"
)

// FrameSink receives every frame the driver produces, in tick order.
type FrameSink interface {
	Consume(ctx context.Context, frame Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(ctx context.Context, frame Frame) error

func (f FrameSinkFunc) Consume(ctx context.Context, frame Frame) error { return f(ctx, frame) }

// BusSink publishes frames on TopicFrames. The frame is the event data.
type BusSink struct {
	events bus.EventBus
	source string
}

func NewBusSink(eb bus.EventBus, source string) *BusSink {
	_ = eb.CreateTopic(TopicFrames)
	return &BusSink{events: eb, source: source}
}

func (s *BusSink) Consume(_ context.Context, frame Frame) error {
	return s.events.PublishToTopic(TopicFrames, bus.NewEvent(EventFrame, s.source, frame))
}

// WriterSink writes frames as newline-delimited JSON.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) Consume(_ context.Context, frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(frame)
}
