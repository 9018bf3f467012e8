package portal

import (
	"sync"

	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/rs/zerolog/log"
)

// Registry hands out one Client per credential. It is owned by the caller and
// safe for concurrent use.
type Registry struct {
	settings *settings.Settings
	options  []ClientOption
	clients  sync.Map
}

func NewRegistry(s *settings.Settings, options ...ClientOption) *Registry {
	if s == nil {
		s = settings.NewSettings()
	}
	return &Registry{
		settings: s.Clone(),
		options:  options,
	}
}

type credentialKey struct {
	apiKey       string
	organization string
}

// ForCredential returns the client for key and organization, creating it on
// first use. Empty values fall back to the registry settings, which carry the
// environment-provided key. Concurrent first calls all get the same client.
func (r *Registry) ForCredential(key, organization string) (*Client, error) {
	cred := Credential{APIKey: key, Organization: organization}
	if cred.APIKey == "" {
		cred.APIKey = helpers.ValueOr(r.settings.Client.APIKey, "")
	}
	if cred.Organization == "" {
		cred.Organization = helpers.ValueOr(r.settings.Client.Organization, "")
	}
	if cred.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	k := credentialKey{apiKey: cred.APIKey, organization: cred.Organization}
	if c, ok := r.clients.Load(k); ok {
		return c.(*Client), nil
	}

	c, err := NewClient(cred, r.settings, r.options...)
	if err != nil {
		return nil, err
	}
	actual, loaded := r.clients.LoadOrStore(k, c)
	if !loaded {
		log.Debug().Str("organization", cred.Organization).Msg("created completion client")
	}
	return actual.(*Client), nil
}

// Len returns the number of clients created so far.
func (r *Registry) Len() int {
	n := 0
	r.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
