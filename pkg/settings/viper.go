package settings

import (
	"strings"
	"time"

	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/spf13/viper"
)

// Flat keys understood by UpdateFromViper. With NewViper, each key can also be
// set through a PARLEY_ prefixed environment variable (PARLEY_AI_RETRIES).
const (
	KeyAPIKey              = "openai-api-key"
	KeyOrganization        = "openai-organization"
	KeyBaseURL             = "openai-base-url"
	KeyTimeout             = "ai-timeout"
	KeyEngine              = "ai-engine"
	KeyCompletionEngine    = "ai-completion-engine"
	KeyMaxResponseTokens   = "ai-max-response-tokens"
	KeyTemperature         = "ai-temperature"
	KeyTopP                = "ai-top-p"
	KeyAccess              = "ai-access"
	KeyRetries             = "ai-retries"
	KeyRateLimitRetries    = "ai-rate-limit-retries"
	KeyMaxCompletionPieces = "ai-max-completion-pieces"
	KeyRetryInterval       = "ai-retry-interval"
	KeySlowRetryInterval   = "ai-slow-retry-interval"
)

// NewViper returns a viper instance reading the environment. The credential
// keys also accept the well-known OPENAI_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("parley")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv(KeyAPIKey, "PARLEY_OPENAI_API_KEY", "OPENAI_API_KEY", "OPENAI_KEY")
	_ = v.BindEnv(KeyOrganization, "PARLEY_OPENAI_ORGANIZATION", "OPENAI_ORGANIZATION", "OPENAI_ORG_ID")
	_ = v.BindEnv(KeyBaseURL, "PARLEY_OPENAI_BASE_URL", "OPENAI_BASE_URL")

	return v
}

// UpdateFromViper overlays every key set in v.
func (s *Settings) UpdateFromViper(v *viper.Viper) error {
	s.fillDefaults()

	setString := func(key string, target **string) {
		if v.IsSet(key) {
			*target = helpers.ToPointer(v.GetString(key))
		}
	}
	setInt := func(key string, target **int) {
		if v.IsSet(key) {
			*target = helpers.ToPointer(v.GetInt(key))
		}
	}
	setFloat := func(key string, target **float64) {
		if v.IsSet(key) {
			*target = helpers.ToPointer(v.GetFloat64(key))
		}
	}

	setString(KeyAPIKey, &s.Client.APIKey)
	setString(KeyOrganization, &s.Client.Organization)
	setString(KeyBaseURL, &s.Client.BaseURL)
	if v.IsSet(KeyTimeout) {
		s.Client.Timeout = helpers.ToPointer(time.Duration(v.GetInt(KeyTimeout)) * time.Second)
	}

	setString(KeyEngine, &s.Chat.Engine)
	setString(KeyCompletionEngine, &s.Chat.CompletionEngine)
	setInt(KeyMaxResponseTokens, &s.Chat.MaxResponseTokens)
	setFloat(KeyTemperature, &s.Chat.Temperature)
	setFloat(KeyTopP, &s.Chat.TopP)
	if v.IsSet(KeyAccess) {
		s.Chat.Access = v.GetString(KeyAccess)
	}

	if v.IsSet(KeyRetries) {
		s.Retry.Retries = v.GetInt(KeyRetries)
	}
	if v.IsSet(KeyRateLimitRetries) {
		s.Retry.RateLimitRetries = v.GetInt(KeyRateLimitRetries)
	}
	if v.IsSet(KeyMaxCompletionPieces) {
		s.Retry.MaxCompletionPieces = v.GetInt(KeyMaxCompletionPieces)
	}
	if v.IsSet(KeyRetryInterval) {
		s.Retry.RetryInterval = secondsToDuration(v.GetFloat64(KeyRetryInterval))
	}
	if v.IsSet(KeySlowRetryInterval) {
		s.Retry.SlowRetryInterval = secondsToDuration(v.GetFloat64(KeySlowRetryInterval))
	}

	return nil
}
