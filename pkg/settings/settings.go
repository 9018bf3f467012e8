// Package settings holds the configuration of the completion client:
// credentials and endpoint, default request parameters and retry budgets.
// Settings load from YAML and are overlaid with environment variables through
// viper.
package settings

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Client *ClientSettings `yaml:"client,omitempty"`
	Chat   *ChatSettings   `yaml:"chat,omitempty"`
	Retry  *RetrySettings  `yaml:"retry,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Client: NewClientSettings(),
		Chat:   NewChatSettings(),
		Retry:  NewRetrySettings(),
	}
}

// NewSettingsFromYAML decodes s on top of the defaults.
func NewSettingsFromYAML(s io.Reader) (*Settings, error) {
	ret := NewSettings()
	if err := yaml.NewDecoder(s).Decode(ret); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	ret.fillDefaults()
	return ret, nil
}

// LoadSettings reads the YAML file at path (if path is not empty) and applies
// the environment overlay.
func LoadSettings(path string) (*Settings, error) {
	ret := NewSettings()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open settings file %s", path)
		}
		defer func() {
			_ = f.Close()
		}()
		ret, err = NewSettingsFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load settings file %s", path)
		}
	}

	if err := ret.UpdateFromViper(NewViper()); err != nil {
		return nil, err
	}
	return ret, nil
}

// fillDefaults restores sections a YAML document explicitly set to null.
func (s *Settings) fillDefaults() {
	if s.Client == nil {
		s.Client = NewClientSettings()
	}
	if s.Chat == nil {
		s.Chat = NewChatSettings()
	}
	if s.Retry == nil {
		s.Retry = NewRetrySettings()
	}
}

func (s *Settings) Clone() *Settings {
	s.fillDefaults()
	return &Settings{
		Client: s.Client.Clone(),
		Chat:   s.Chat.Clone(),
		Retry:  s.Retry.Clone(),
	}
}
