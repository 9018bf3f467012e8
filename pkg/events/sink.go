package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// Sink receives completion events.
type Sink interface {
	PublishEvent(event Event) error
}

// NullSink drops every event.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error {
	return nil
}

var _ Sink = NullSink{}

// WatermillSink publishes events as JSON messages to a watermill Publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("request_id", event.RequestID)

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

var _ Sink = (*WatermillSink)(nil)

// MultiSink forwards every event to all its sinks and returns the first error.
type MultiSink []Sink

func (m MultiSink) PublishEvent(event Event) error {
	var first error
	for _, s := range m {
		if err := s.PublishEvent(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishBlind publishes event and only logs failures.
func PublishBlind(sink Sink, event Event) {
	if sink == nil {
		return
	}
	if err := sink.PublishEvent(event); err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish event")
	}
}
