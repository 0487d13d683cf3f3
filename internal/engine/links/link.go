package links

import (
	"errors"
	"fmt"
	"time"
)

// Mapping binds a short code to the URL it stands for until ExpirationAt.
// Mappings are never mutated after creation.
type Mapping struct {
	ID           uint64    `json:"id"`
	OriginalURL  string    `json:"original_url"`
	ShortCode    string    `json:"short_code"`
	ExpirationAt time.Time `json:"expiration_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired reports whether the mapping stopped being live at or before now.
func (m *Mapping) IsExpired(now time.Time) bool {
	return !now.Before(m.ExpirationAt)
}

// Remaining is how long the mapping stays live after now; never negative.
func (m *Mapping) Remaining(now time.Time) time.Duration {
	if d := m.ExpirationAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

var (
	ErrNotFound = errors.New("short code not found")
	ErrGone     = errors.New("short link has expired")

	// ErrCreationFailed wraps persistence failures while storing a new mapping.
	ErrCreationFailed = errors.New("failed to create short link")
	// ErrCreationTimeout is returned when a concurrent creation for the same URL
	// neither finished nor released its lease within the wait bound.
	ErrCreationTimeout = errors.New("timed out waiting for concurrent creation")

	ErrInvalidURL = errors.New("original_url must be an absolute http or https URL")
)

// ValidationError reports an original URL longer than the configured limit.
type ValidationError struct {
	Length int
	Limit  int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("url length %d exceeds the maximum of %d", e.Length, e.Limit)
}
