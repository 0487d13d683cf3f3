package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	apiContext "shortr/internal/api/context"
	"shortr/internal/engine/idgen"
	"shortr/internal/engine/links"
	"shortr/internal/engine/redirect"
	apperrors "shortr/internal/pkg/errors"
)

type fakeShortener struct {
	mapping *links.Mapping
	err     error
	gotURL  string
}

func (f *fakeShortener) Shorten(ctx context.Context, originalURL string) (*links.Mapping, error) {
	f.gotURL = originalURL
	return f.mapping, f.err
}

type fakeResolver struct {
	url       string
	err       error
	remaining time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, code string) (string, error) {
	return f.url, f.err
}

func (f *fakeResolver) QRCode(ctx context.Context, code, shortURL string, size int) (*redirect.QRImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if size < links.MinQRSize || size > links.MaxQRSize {
		return nil, links.ErrInvalidQRSize
	}
	remaining := f.remaining
	if remaining == 0 {
		remaining = 30 * 24 * time.Hour
	}
	return &redirect.QRImage{PNG: []byte("\x89PNG" + shortURL), Remaining: remaining}, nil
}

func withParams(r *http.Request, ps ...httprouter.Param) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), apiContext.Params, httprouter.Params(ps)))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return body
}

func TestLinkHandler_Shorten(t *testing.T) {
	expires := time.Date(2025, 11, 14, 22, 13, 20, 0, time.UTC)
	mapping := &links.Mapping{ID: 62, OriginalURL: "https://example.com/x", ShortCode: "000010", ExpirationAt: expires}

	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "Created", body: `{"original_url":"https://example.com/x"}`, wantStatus: http.StatusCreated},
		{name: "Malformed JSON", body: `{"original_url":`, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeInvalidInput},
		{name: "Missing URL", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeInvalidInput},
		{name: "Not HTTP", body: `{"original_url":"ftp://example.com"}`, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeInvalidInput},
		{name: "Too Long", body: `{"original_url":"https://example.com/x"}`, svcErr: &links.ValidationError{Length: 2049, Limit: 2048}, wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeURLTooLong},
		{name: "Allocation Timeout", body: `{"original_url":"https://example.com/x"}`, svcErr: fmt.Errorf("allocate id: %w", idgen.ErrAllocationTimeout), wantStatus: http.StatusServiceUnavailable, wantCode: apperrors.ErrCodeUnavailable},
		{name: "Creation Timeout", body: `{"original_url":"https://example.com/x"}`, svcErr: links.ErrCreationTimeout, wantStatus: http.StatusServiceUnavailable, wantCode: apperrors.ErrCodeUnavailable},
		{name: "Persistence Failure", body: `{"original_url":"https://example.com/x"}`, svcErr: fmt.Errorf("%w: %w", links.ErrCreationFailed, errors.New("disk full")), wantStatus: http.StatusInternalServerError, wantCode: apperrors.ErrCodeCreationFailed},
		{name: "Unexpected", body: `{"original_url":"https://example.com/x"}`, svcErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeShortener{mapping: mapping, err: tt.svcErr}
			h := NewLinkHandler(svc, NewLinkBuilder("", "v1"))

			req := httptest.NewRequest(http.MethodPost, "http://sho.rt/urls/v1/shorten", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.Shorten(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}

			if tt.wantStatus != http.StatusCreated {
				body := decodeError(t, rr)
				if body.Success || body.Code != tt.wantCode {
					t.Errorf("envelope = %+v, want code %s", body, tt.wantCode)
				}
				if tt.wantStatus == http.StatusServiceUnavailable && rr.Header().Get("Retry-After") == "" {
					t.Error("503 must carry Retry-After")
				}
				return
			}

			var got shortenResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := shortenResponse{
				ShortURL:       "http://sho.rt/urls/v1/go/000010",
				ShortCode:      "000010",
				OriginalURL:    "https://example.com/x",
				ExpirationDate: "2025-11-14",
				ExpirationAt:   "2025-11-14T22:13:20Z",
				Success:        true,
			}
			if got != want {
				t.Errorf("response = %+v, want %+v", got, want)
			}
		})
	}
}

func TestRedirectHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		url        string
		err        error
		wantStatus int
	}{
		{name: "Found", code: "000001", url: "https://example.com", wantStatus: http.StatusFound},
		{name: "Not Found", code: "000002", err: links.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "Gone", code: "000003", err: links.ErrGone, wantStatus: http.StatusGone},
		{name: "Junk Code", code: "bad-code!", wantStatus: http.StatusNotFound},
		{name: "Store Down", code: "000004", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRedirectHandler(&fakeResolver{url: tt.url, err: tt.err}, NewLinkBuilder("", "v1"))

			req := withParams(httptest.NewRequest(http.MethodGet, "/urls/v1/go/"+tt.code, nil),
				httprouter.Param{Key: "code", Value: tt.code})
			rr := httptest.NewRecorder()
			h.Handle(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusFound && rr.Header().Get("Location") != tt.url {
				t.Errorf("Location = %q, want %q", rr.Header().Get("Location"), tt.url)
			}
		})
	}
}

func TestRedirectHandler_QRCode(t *testing.T) {
	tests := []struct {
		name             string
		query            string
		err              error
		remaining        time.Duration
		wantStatus       int
		wantCacheControl string
	}{
		{name: "Default Size", wantStatus: http.StatusOK, wantCacheControl: "public, max-age=3600"},
		{name: "Explicit Size", query: "?size=512", wantStatus: http.StatusOK, wantCacheControl: "public, max-age=3600"},
		{name: "Expires Within The Hour", remaining: 90 * time.Second, wantStatus: http.StatusOK, wantCacheControl: "public, max-age=90"},
		{name: "Expires Within A Second", remaining: 400 * time.Millisecond, wantStatus: http.StatusOK, wantCacheControl: "no-store"},
		{name: "Non Numeric Size", query: "?size=big", wantStatus: http.StatusBadRequest},
		{name: "Size Out Of Range", query: "?size=4096", wantStatus: http.StatusBadRequest},
		{name: "Expired", err: links.ErrGone, wantStatus: http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRedirectHandler(&fakeResolver{err: tt.err, remaining: tt.remaining}, NewLinkBuilder("https://sho.rt/", "v1"))

			req := withParams(httptest.NewRequest(http.MethodGet, "/urls/v1/qr/000001"+tt.query, nil),
				httprouter.Param{Key: "code", Value: "000001"})
			rr := httptest.NewRecorder()
			h.QRCode(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %s", ct)
			}
			if cc := rr.Header().Get("Cache-Control"); cc != tt.wantCacheControl {
				t.Errorf("Cache-Control = %q, want %q", cc, tt.wantCacheControl)
			}
			if !strings.HasSuffix(rr.Body.String(), "https://sho.rt/urls/v1/go/000001") {
				t.Errorf("QR encoded the wrong link: %q", rr.Body.String())
			}
		})
	}
}

func TestLinkBuilder_ShortURL(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://localhost:8000/", nil)
	proxied := httptest.NewRequest(http.MethodGet, "http://sho.rt/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")

	tests := []struct {
		name    string
		baseURL string
		req     *http.Request
		want    string
	}{
		{"Request Host", "", plain, "http://localhost:8000/urls/v1/go/00000a"},
		{"Forwarded Proto", "", proxied, "https://sho.rt/urls/v1/go/00000a"},
		{"Configured Base", "https://s.example.com/", plain, "https://s.example.com/urls/v1/go/00000a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewLinkBuilder(tt.baseURL, "v1").ShortURL(tt.req, "00000a"); got != tt.want {
				t.Errorf("ShortURL = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantState  string
	}{
		{"Healthy", map[string]Check{"database": ok, "cache": ok}, http.StatusOK, "healthy"},
		{"Cache Down", map[string]Check{"database": ok, "cache": down}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHealthHandler(tt.checks).Check(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState {
				t.Errorf("status = %s, want %s", body.Status, tt.wantState)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Errorf("checks = %v", body.Checks)
			}
		})
	}
}
