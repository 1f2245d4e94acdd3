package crawler

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrNoHost is returned for URLs without a host component.
var ErrNoHost = errors.New("url has no host")

// RegistrableDomain returns the eTLD+1 of rawURL's host, e.g. nsf.gov for
// https://www.nsf.gov/x. Hosts without a public suffix (IP literals,
// localhost) are returned unchanged.
func RegistrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHost, rawURL)
	}

	if net.ParseIP(host) != nil {
		return host, nil
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}

	return domain, nil
}
