package handlers

import (
	"net/http"
	"strings"
)

// LinkBuilder turns short codes into absolute redirect URLs. Without a
// configured base URL it falls back to the scheme and host of the request.
type LinkBuilder struct {
	baseURL    string
	apiVersion string
}

func NewLinkBuilder(baseURL, apiVersion string) *LinkBuilder {
	return &LinkBuilder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
	}
}

func (b *LinkBuilder) ShortURL(r *http.Request, code string) string {
	base := b.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/urls/" + b.apiVersion + "/go/" + code
}
