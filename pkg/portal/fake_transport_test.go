package portal

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/settings"
)

// scriptedTransport answers with the given functions and records every
// request. It is safe for concurrent use.
type scriptedTransport struct {
	chat       func(calls int, req *ChatRequest) (*ChatResponse, error)
	completion func(calls int, req *CompletionRequest) (*CompletionResponse, error)

	mu                 sync.Mutex
	chatRequests       []*ChatRequest
	completionRequests []*CompletionRequest
}

func (s *scriptedTransport) CreateChatCompletion(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	s.chatRequests = append(s.chatRequests, req)
	calls := len(s.chatRequests)
	s.mu.Unlock()
	return s.chat(calls, req)
}

func (s *scriptedTransport) CreateCompletion(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	s.completionRequests = append(s.completionRequests, req)
	calls := len(s.completionRequests)
	s.mu.Unlock()
	return s.completion(calls, req)
}

func (s *scriptedTransport) chatCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chatRequests)
}

func (s *scriptedTransport) completionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completionRequests)
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) PublishEvent(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []events.Event
	for _, e := range r.events {
		if e.Type == t {
			ret = append(ret, e)
		}
	}
	return ret
}

func testSettings() *settings.Settings {
	s := settings.NewSettings()
	s.Retry.RetryInterval = time.Second
	s.Retry.SlowRetryInterval = 5 * time.Second
	return s
}

// newScriptedClient routes both accesses to t and records sleeps instead of
// waiting.
func newScriptedClient(t *scriptedTransport, options ...ClientOption) (*Client, *recordedSleeps, *recordingSink) {
	sleeps := &recordedSleeps{}
	sink := &recordingSink{}
	options = append([]ClientOption{
		WithTransport(AccessSDK, t),
		WithTransport(AccessHTTP, t),
		WithSleeper(sleeps.sleep),
		WithEventSink(sink),
	}, options...)
	c, err := NewClient(Credential{APIKey: "sk-test"}, testSettings(), options...)
	if err != nil {
		panic(err)
	}
	return c, sleeps, sink
}
