package portal

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// BaseURLPolicy relaxes the checks ValidateBaseURL applies.
type BaseURLPolicy struct {
	AllowHTTP          bool
	AllowLocalNetworks bool
}

// ValidateBaseURL checks that rawURL is a usable API root: https (or http
// when allowed), a host, and no loopback or private targets unless allowed.
// IP literals are checked without DNS lookups.
func ValidateBaseURL(rawURL string, policy BaseURLPolicy) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(ErrInvalidRequest, "invalid base URL %q: %v", rawURL, err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.Wrapf(ErrInvalidRequest, "base URL %q: http scheme is not allowed", rawURL)
		}
	default:
		return errors.Wrapf(ErrInvalidRequest, "base URL %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q has no host", rawURL)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q must not carry a query or fragment", rawURL)
	}

	if !policy.AllowLocalNetworks &&
		(host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")) {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q: local hostname is not allowed", rawURL)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !policy.AllowLocalNetworks {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q: zoned IP address is not allowed", rawURL)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q: disallowed IP address", rawURL)
	}
	if !policy.AllowLocalNetworks &&
		(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
		return errors.Wrapf(ErrInvalidRequest, "base URL %q: local network address is not allowed", rawURL)
	}

	return nil
}
