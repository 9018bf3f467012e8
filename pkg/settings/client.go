package settings

import (
	"net/http"
	"time"

	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// ClientSettings configure how the completion client reaches the service.
type ClientSettings struct {
	APIKey       *string        `yaml:"api_key,omitempty"`
	Organization *string        `yaml:"organization,omitempty"`
	BaseURL      *string        `yaml:"base_url,omitempty"`
	UserAgent    *string        `yaml:"user_agent,omitempty"`
	Timeout      *time.Duration `yaml:"-"`

	// AllowHTTP and AllowLocalNetworks relax the base URL checks of the raw
	// HTTP transport, mostly for local proxies and tests.
	AllowHTTP          bool `yaml:"allow_http,omitempty"`
	AllowLocalNetworks bool `yaml:"allow_local_networks,omitempty"`

	HTTPClient *http.Client `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		BaseURL: helpers.ToPointer(DefaultBaseURL),
		Timeout: &defaultTimeout,
	}
}

// UnmarshalYAML reads the timeout as an integer number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias ClientSettings
	if err := value.Decode((*Alias)(cs)); err != nil {
		return err
	}

	var aux struct {
		Timeout *int `yaml:"timeout"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
	}
	return nil
}

// Clone deep-copies the settings. The HTTP client is shared, not copied.
func (cs *ClientSettings) Clone() *ClientSettings {
	tmp := *cs
	tmp.HTTPClient = nil
	ret := clone.Clone(&tmp).(*ClientSettings)
	ret.HTTPClient = cs.HTTPClient
	return ret
}

func (cs *ClientSettings) GetBaseURL() string {
	if cs.BaseURL == nil || *cs.BaseURL == "" {
		return DefaultBaseURL
	}
	return *cs.BaseURL
}

func (cs *ClientSettings) GetTimeout() time.Duration {
	return helpers.ValueOr(cs.Timeout, 60*time.Second)
}

// GetHTTPClient returns the configured client, or a fresh one with the
// configured timeout.
func (cs *ClientSettings) GetHTTPClient() *http.Client {
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	return &http.Client{Timeout: cs.GetTimeout()}
}
