package links

import (
	"net/url"
)

// ValidateURL checks that raw is an absolute http(s) URL with a host. Length
// is enforced by the service, not here.
func ValidateURL(raw string) error {
	if raw == "" {
		return ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}
