package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesJSON(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, NewWatermillLogger(zerolog.Nop()))
	defer func() {
		_ = pubSub.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "completions")
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "completions")
	e := NewEvent(EventTypeRetry, "req-1", "chat")
	e.Attempt = 2
	e.Access = "http"
	require.NoError(t, sink.PublishEvent(e))

	var msg *message.Message
	select {
	case msg = <-messages:
	case <-ctx.Done():
		t.Fatal("no message received")
	}
	msg.Ack()

	assert.Equal(t, "retry", msg.Metadata.Get("event_type"))
	assert.Equal(t, "req-1", msg.Metadata.Get("request_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, EventTypeRetry, decoded.Type)
	assert.Equal(t, 2, decoded.Attempt)
	assert.Equal(t, "http", decoded.Access)
}

type failingSink struct {
	calls int
}

func (f *failingSink) PublishEvent(Event) error {
	f.calls++
	return errors.New("broken")
}

func TestMultiSinkReachesAllSinks(t *testing.T) {
	a, b := &failingSink{}, &failingSink{}
	err := MultiSink{a, NullSink{}, b}.PublishEvent(NewEvent(EventTypeStart, "r", "chat"))
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPublishBlindSwallowsErrors(t *testing.T) {
	f := &failingSink{}
	PublishBlind(f, NewEvent(EventTypeError, "r", "completion"))
	PublishBlind(nil, NewEvent(EventTypeError, "r", "completion"))
	assert.Equal(t, 1, f.calls)
}

func TestWatermillLoggerWritesFields(t *testing.T) {
	var sb strings.Builder
	logger := NewWatermillLogger(zerolog.New(&sb)).With(watermill.LogFields{"topic": "completions"})
	logger.Error("publish failed", errors.New("closed"), watermill.LogFields{"attempt": 2})

	out := sb.String()
	assert.Contains(t, out, `"topic":"completions"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"error":"closed"`)
	assert.Contains(t, out, `"message":"publish failed"`)
}
