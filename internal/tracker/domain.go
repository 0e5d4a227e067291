package tracker

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned for empty URLs and URLs that do not parse as
	// absolute URLs.
	ErrInvalidURL = errors.New("tracker: invalid url")
	// ErrExcludedScheme is returned for browser-internal pages.
	ErrExcludedScheme = errors.New("tracker: excluded scheme")
	// ErrNoHost is returned for valid URLs without a host, such as
	// about:blank or file:// pages. Time there belongs to no domain.
	ErrNoHost = errors.New("tracker: url has no host")
)

// DefaultExcludedSchemes are the browsers' own internal page schemes.
var DefaultExcludedSchemes = []string{"chrome", "edge"}

// Resolver maps tab URLs to domain keys.
type Resolver struct {
	excluded map[string]struct{}
}

// NewResolver creates a resolver ignoring the given schemes. Schemes are
// matched case-insensitively, with or without the trailing colon.
func NewResolver(excludedSchemes []string) *Resolver {
	if excludedSchemes == nil {
		excludedSchemes = DefaultExcludedSchemes
	}
	r := &Resolver{excluded: make(map[string]struct{}, len(excludedSchemes))}
	for _, scheme := range excludedSchemes {
		r.excluded[strings.TrimSuffix(strings.ToLower(scheme), ":")] = struct{}{}
	}
	return r
}

// Domain returns the domain key for rawURL.
func (r *Resolver) Domain(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}

	// url.Parse already lowercases the scheme.
	if _, ok := r.excluded[u.Scheme]; ok {
		return "", fmt.Errorf("%w: %s", ErrExcludedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHost, rawURL)
	}

	return CleanDomain(host), nil
}

// CleanDomain strips a single leading "www." from hostname.
func CleanDomain(hostname string) string {
	return strings.TrimPrefix(hostname, "www.")
}
