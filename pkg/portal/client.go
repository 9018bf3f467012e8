// Package portal is a resilient client for OpenAI-compatible completion
// services. A Client sends single prompts or chat turn sequences through one
// of two interchangeable transports, retries transient failures with backoff,
// and transparently continues candidates that were truncated by the length
// limit.
package portal

import (
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/pkg/errors"
)

// Credential identifies the account requests are made for.
type Credential struct {
	APIKey       string
	Organization string
}

// Client is safe for concurrent use.
type Client struct {
	credential Credential
	settings   *settings.Settings
	transports map[Access]Transport
	sink       events.Sink
	sleep      Sleeper
}

// NewClient builds a client for cred. s is copied; nil means defaults.
func NewClient(cred Credential, s *settings.Settings, options ...ClientOption) (*Client, error) {
	if cred.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if s == nil {
		s = settings.NewSettings()
	}

	c := &Client{
		credential: cred,
		settings:   s.Clone(),
		transports: map[Access]Transport{},
		sink:       events.NullSink{},
		sleep:      sleepContext,
	}
	for _, option := range options {
		option(c)
	}

	_, haveSDK := c.transports[AccessSDK]
	_, haveHTTP := c.transports[AccessHTTP]
	if !haveSDK || !haveHTTP {
		cs := c.settings.Client
		baseURL := cs.GetBaseURL()
		if err := ValidateBaseURL(baseURL, BaseURLPolicy{
			AllowHTTP:          cs.AllowHTTP,
			AllowLocalNetworks: cs.AllowLocalNetworks,
		}); err != nil {
			return nil, err
		}

		httpClient := cs.GetHTTPClient()
		if !haveSDK {
			c.transports[AccessSDK] = NewSDKTransport(cred, baseURL, httpClient)
		}
		if !haveHTTP {
			t := NewHTTPTransport(cred, baseURL, httpClient)
			t.userAgent = helpers.ValueOr(cs.UserAgent, "")
			c.transports[AccessHTTP] = t
		}
	}

	return c, nil
}

func (c *Client) Credential() Credential {
	return c.credential
}

func (c *Client) transport(access Access) (Transport, error) {
	t, ok := c.transports[access]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidRequest, "unknown access %q", access)
	}
	return t, nil
}

func (c *Client) policy(cfg *requestConfig) retryPolicy {
	return retryPolicy{
		retries:          cfg.retries,
		rateLimitRetries: cfg.rateLimitRetries,
		interval:         c.settings.Retry.RetryInterval,
		slowInterval:     c.settings.Retry.SlowRetryInterval,
		sleep:            c.sleep,
	}
}
