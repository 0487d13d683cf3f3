package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"shortr/internal/engine/links"
	apperrors "shortr/internal/pkg/errors"
)

type Shortener interface {
	Shorten(ctx context.Context, originalURL string) (*links.Mapping, error)
}

type LinkHandler struct {
	service Shortener
	links   *LinkBuilder
}

func NewLinkHandler(service Shortener, builder *LinkBuilder) *LinkHandler {
	return &LinkHandler{service: service, links: builder}
}

type shortenRequest struct {
	OriginalURL string `json:"original_url"`
}

type shortenResponse struct {
	ShortURL       string `json:"short_url"`
	ShortCode      string `json:"short_code"`
	OriginalURL    string `json:"original_url"`
	ExpirationDate string `json:"expiration_date"`
	ExpirationAt   string `json:"expiration_at"`
	Success        bool   `json:"success"`
}

func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.OriginalURL = strings.TrimSpace(req.OriginalURL)
	if err := links.ValidateURL(req.OriginalURL); err != nil {
		writeServiceError(w, r, err)
		return
	}

	m, err := h.service.Shorten(r.Context(), req.OriginalURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	expiresAt := m.ExpirationAt.UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(shortenResponse{
		ShortURL:       h.links.ShortURL(r, m.ShortCode),
		ShortCode:      m.ShortCode,
		OriginalURL:    m.OriginalURL,
		ExpirationDate: expiresAt.Format(time.DateOnly),
		ExpirationAt:   expiresAt.Format(time.RFC3339),
		Success:        true,
	})
}
