package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shortr/internal/engine/codec"
	"shortr/internal/engine/links"
	"shortr/internal/engine/redirect"
	apperrors "shortr/internal/pkg/errors"
)

type Resolver interface {
	Resolve(ctx context.Context, code string) (string, error)
	QRCode(ctx context.Context, code, shortURL string, size int) (*redirect.QRImage, error)
}

// qrMaxAge caps how long clients may cache a QR image. A link that expires
// sooner gets its remaining validity instead.
const qrMaxAge = time.Hour

type RedirectHandler struct {
	resolver Resolver
	links    *LinkBuilder
}

func NewRedirectHandler(resolver Resolver, builder *LinkBuilder) *RedirectHandler {
	return &RedirectHandler{resolver: resolver, links: builder}
}

func (h *RedirectHandler) Handle(w http.ResponseWriter, r *http.Request) {
	code := params(r).ByName("code")
	// Codes outside the alphabet can never have been issued.
	if !codec.Valid(code) {
		writeServiceError(w, r, links.ErrNotFound)
		return
	}

	url, err := h.resolver.Resolve(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *RedirectHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	code := params(r).ByName("code")
	if !codec.Valid(code) {
		writeServiceError(w, r, links.ErrNotFound)
		return
	}

	size := links.DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "size must be an integer", nil)
			return
		}
		size = n
	}

	img, err := h.resolver.QRCode(r.Context(), code, h.links.ShortURL(r, code), size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if maxAge := int(min(qrMaxAge, img.Remaining) / time.Second); maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.Write(img.PNG)
}
