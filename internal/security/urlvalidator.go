package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrPrivateIP     = fmt.Errorf("URL points to a private address")
	ErrInvalidScheme = fmt.Errorf("unsupported URL scheme")
	ErrMissingHost   = fmt.Errorf("URL has no host")
)

// ValidateEndpointURL checks a configured service base URL. Plain http is
// accepted so that local mirrors and test servers can be used.
func ValidateEndpointURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return ErrMissingHost
	}
	return nil
}

// ValidatePublicURL checks a URL that is about to be handed to a remote
// service as a fetchable reference. It must be https and must not name a
// loopback or private address. Hostnames are not resolved.
func ValidatePublicURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("%w: %q (https required)", ErrInvalidScheme, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrMissingHost
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return ErrPrivateIP
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return ErrPrivateIP
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0: // 0.0.0.0/8
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // 100.64.0.0/10 (CGNAT)
			return true
		case ip4[0] >= 224: // multicast and reserved
			return true
		}
	}

	return false
}
