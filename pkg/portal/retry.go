package portal

import (
	"context"
	"time"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/rs/zerolog/log"
)

// Sleeper blocks the calling goroutine for d, or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryPolicy bounds one attempt sequence. Transient failures and rate limits
// are counted separately.
type retryPolicy struct {
	retries          int
	rateLimitRetries int
	interval         time.Duration
	slowInterval     time.Duration
	sleep            Sleeper
}

// attemptScope identifies an attempt sequence in logs and events.
type attemptScope struct {
	requestID string
	op        string
	access    Access
	model     string
	candidate int
	piece     int
	sink      events.Sink
}

func (s attemptScope) event(t events.EventType) events.Event {
	e := events.NewEvent(t, s.requestID, s.op)
	e.Access = string(s.access)
	e.Model = s.model
	e.Candidate = s.candidate
	e.Piece = s.piece
	return e
}

// withRetries runs call until it succeeds, fails fatally, or a budget is
// spent. Context cancellation is returned as is.
func withRetries[T any](ctx context.Context, p retryPolicy, scope attemptScope, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.retries < 1 {
		p.retries = 1
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}

	transient, rateLimited := 0, 0
	for {
		attempt := transient + rateLimited + 1
		log.Debug().
			Str("request_id", scope.requestID).
			Str("access", string(scope.access)).
			Str("model", scope.model).
			Int("attempt", attempt).
			Int("candidate", scope.candidate).
			Int("piece", scope.piece).
			Msg("sending request")

		ret, err := call(ctx)
		if err == nil {
			return ret, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		class, classified := classify(err)
		switch class {
		case failureFatal:
			logFatal(scope, class, attempt, classified)
			if apiErr, ok := classified.(*APIError); ok {
				apiErr.Attempts = attempt
			}
			return zero, classified

		case failureRateLimited:
			rateLimited++
			if rateLimited > p.rateLimitRetries {
				return zero, exhausted(scope, attempt, classified, "rate limit persisted")
			}
			log.Warn().Err(classified).
				Str("request_id", scope.requestID).
				Stringer("class", class).
				Int("attempt", attempt).
				Dur("delay", p.slowInterval).
				Msg("rate limit exceeded, slowing down retries")
			e := scope.event(events.EventTypeRateLimited)
			e.Attempt = attempt
			e.Delay = p.slowInterval
			e.Error = classified.Error()
			events.PublishBlind(scope.sink, e)
			if err := p.sleep(ctx, p.slowInterval); err != nil {
				return zero, err
			}

		default:
			transient++
			if transient >= p.retries {
				return zero, exhausted(scope, attempt, classified, "access failed")
			}
			log.Warn().Err(classified).
				Str("request_id", scope.requestID).
				Stringer("class", class).
				Int("attempt", attempt).
				Int("retries", p.retries).
				Msg("transient failure, retrying")
			e := scope.event(events.EventTypeRetry)
			e.Attempt = attempt
			e.Delay = p.interval
			e.Error = classified.Error()
			events.PublishBlind(scope.sink, e)
			if err := p.sleep(ctx, p.interval); err != nil {
				return zero, err
			}
		}
	}
}

func exhausted(scope attemptScope, attempts int, last error, message string) error {
	ret := &APIError{
		Kind:     ErrServiceUnavailable,
		Message:  message + ", please try later",
		Attempts: attempts,
		Err:      last,
	}
	if se, ok := last.(*StatusError); ok {
		ret.StatusCode = se.StatusCode
		ret.Code = se.Code
	}
	log.Warn().Err(last).
		Str("request_id", scope.requestID).
		Int("attempts", attempts).
		Msg("giving up")
	return ret
}

func logFatal(scope attemptScope, class failureClass, attempt int, err error) {
	l := log.Info()
	if apiErr, ok := err.(*APIError); ok && apiErr.Kind == ErrAuthentication {
		l = log.Error()
	}
	l.Err(err).
		Str("request_id", scope.requestID).
		Str("access", string(scope.access)).
		Stringer("class", class).
		Int("attempt", attempt).
		Msg("request failed")
}
