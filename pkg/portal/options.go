package portal

import (
	"net/http"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/go-go-golems/parley/pkg/settings"
)

type ClientOption func(*Client)

// WithTransport replaces the transport used for access.
func WithTransport(access Access, t Transport) ClientOption {
	return func(c *Client) {
		c.transports[access] = t
	}
}

// WithHTTPClient sets the HTTP client of the built-in transports.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.settings.Client.HTTPClient = httpClient
	}
}

func WithEventSink(sink events.Sink) ClientOption {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithSleeper replaces the backoff sleep, mostly for tests.
func WithSleeper(sleep Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

type requestConfig struct {
	model  string
	access Access
	Parameters

	retries             int
	rateLimitRetries    int
	maxCompletionPieces int
}

type RequestOption func(*requestConfig)

func newRequestConfig(s *settings.Settings, model string) *requestConfig {
	chat, retry := s.Chat, s.Retry
	return &requestConfig{
		model:  model,
		access: Access(chat.Access),
		Parameters: Parameters{
			MaxTokens:        chat.MaxResponseTokens,
			Temperature:      chat.Temperature,
			TopP:             chat.TopP,
			PresencePenalty:  chat.PresencePenalty,
			FrequencyPenalty: chat.FrequencyPenalty,
			N:                helpers.ValueOr(chat.N, 1),
			Stop:             append([]string(nil), chat.Stop...),
			LogitBias:        chat.LogitBias,
			User:             helpers.ValueOr(chat.User, ""),
		},
		retries:             retry.Retries,
		rateLimitRetries:    retry.RateLimitRetries,
		maxCompletionPieces: retry.MaxCompletionPieces,
	}
}

func WithModel(model string) RequestOption {
	return func(c *requestConfig) {
		c.model = model
	}
}

func WithAccess(access Access) RequestOption {
	return func(c *requestConfig) {
		c.access = access
	}
}

func WithMaxTokens(n int) RequestOption {
	return func(c *requestConfig) {
		c.MaxTokens = &n
	}
}

func WithTemperature(t float64) RequestOption {
	return func(c *requestConfig) {
		c.Temperature = &t
	}
}

func WithTopP(p float64) RequestOption {
	return func(c *requestConfig) {
		c.TopP = &p
	}
}

func WithPresencePenalty(p float64) RequestOption {
	return func(c *requestConfig) {
		c.PresencePenalty = &p
	}
}

func WithFrequencyPenalty(p float64) RequestOption {
	return func(c *requestConfig) {
		c.FrequencyPenalty = &p
	}
}

// WithN asks for n candidates.
func WithN(n int) RequestOption {
	return func(c *requestConfig) {
		c.N = n
	}
}

func WithStop(stop ...string) RequestOption {
	return func(c *requestConfig) {
		c.Stop = stop
	}
}

func WithLogitBias(bias map[string]int) RequestOption {
	return func(c *requestConfig) {
		c.LogitBias = bias
	}
}

func WithUser(user string) RequestOption {
	return func(c *requestConfig) {
		c.User = user
	}
}

// WithRetries sets the number of attempts allowed for transient failures.
func WithRetries(retries int) RequestOption {
	return func(c *requestConfig) {
		c.retries = retries
	}
}

func WithRateLimitRetries(retries int) RequestOption {
	return func(c *requestConfig) {
		c.rateLimitRetries = retries
	}
}

// WithMaxCompletionPieces caps the continuation rounds spent on a truncated
// candidate.
func WithMaxCompletionPieces(n int) RequestOption {
	return func(c *requestConfig) {
		c.maxCompletionPieces = n
	}
}
