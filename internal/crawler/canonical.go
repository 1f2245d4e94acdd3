package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"nui/pkg/nui"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// CanonicalizeURL normalizes rawURL: lower-case scheme and host, default
// port and fragment dropped, empty path becomes "/". Query order is kept.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHost, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host += ":" + port
	}

	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String(), nil
}

// CanonicalURLHash returns the lowercase hex SHA-256 of the canonical form of rawURL.
func CanonicalURLHash(rawURL string) (string, error) {
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	return nui.SHA256Hex([]byte(canonical)), nil
}
