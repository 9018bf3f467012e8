package settings

import (
	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/huandu/go-clone"
)

const (
	DefaultEngine           = "gpt-4"
	DefaultCompletionEngine = "gpt-3.5-turbo-instruct"
	DefaultAccess           = "openai"
)

// ChatSettings hold the default request parameters. Nil fields are left out
// of requests so the service defaults apply.
type ChatSettings struct {
	Engine            *string        `yaml:"engine,omitempty"`
	CompletionEngine  *string        `yaml:"completion_engine,omitempty"`
	MaxResponseTokens *int           `yaml:"max_response_tokens,omitempty"`
	Temperature       *float64       `yaml:"temperature,omitempty"`
	TopP              *float64       `yaml:"top_p,omitempty"`
	PresencePenalty   *float64       `yaml:"presence_penalty,omitempty"`
	FrequencyPenalty  *float64       `yaml:"frequency_penalty,omitempty"`
	N                 *int           `yaml:"n,omitempty"`
	Stop              []string       `yaml:"stop,omitempty"`
	LogitBias         map[string]int `yaml:"logit_bias,omitempty"`
	User              *string        `yaml:"user,omitempty"`
	// Access selects the transport, "openai" for the SDK or "http" for raw
	// requests.
	Access string `yaml:"access,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Engine:           helpers.ToPointer(DefaultEngine),
		CompletionEngine: helpers.ToPointer(DefaultCompletionEngine),
		N:                helpers.ToPointer(1),
		Stop:             []string{},
		LogitBias:        map[string]int{},
		Access:           DefaultAccess,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
