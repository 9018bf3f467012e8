package settings

import (
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

// RetrySettings bound every network attempt sequence. The counters are
// independent: each continuation round gets its own Retries and
// RateLimitRetries budget, and MaxCompletionPieces caps the rounds.
type RetrySettings struct {
	Retries             int `yaml:"retries"`
	RateLimitRetries    int `yaml:"rate_limit_retries"`
	MaxCompletionPieces int `yaml:"max_completion_pieces"`

	RetryInterval     time.Duration `yaml:"-"`
	SlowRetryInterval time.Duration `yaml:"-"`
}

func NewRetrySettings() *RetrySettings {
	return &RetrySettings{
		Retries:             1,
		RateLimitRetries:    5,
		MaxCompletionPieces: 5,
		RetryInterval:       time.Second,
		SlowRetryInterval:   5 * time.Second,
	}
}

// UnmarshalYAML reads the intervals as (fractional) seconds.
func (rs *RetrySettings) UnmarshalYAML(value *yaml.Node) error {
	type Alias RetrySettings
	if err := value.Decode((*Alias)(rs)); err != nil {
		return err
	}

	var aux struct {
		RetryInterval     *float64 `yaml:"retry_interval"`
		SlowRetryInterval *float64 `yaml:"slow_retry_interval"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.RetryInterval != nil {
		rs.RetryInterval = secondsToDuration(*aux.RetryInterval)
	}
	if aux.SlowRetryInterval != nil {
		rs.SlowRetryInterval = secondsToDuration(*aux.SlowRetryInterval)
	}
	return nil
}

func (rs *RetrySettings) Clone() *RetrySettings {
	return clone.Clone(rs).(*RetrySettings)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
