package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shortr/internal/platform/database"
)

// Store is the durable side of the engine. It is the source of truth for
// mappings; the cache only ever holds copies.
type Store interface {
	// CreateIfAbsent inserts m unless url already has a live mapping at now,
	// in which case it returns that mapping and false. The check and the
	// insert are serialised per URL inside the store.
	CreateIfAbsent(ctx context.Context, m *Mapping, now time.Time) (*Mapping, bool, error)
	// FindLiveByURL returns the live mapping for url with the latest
	// expiration, or ErrNotFound.
	FindLiveByURL(ctx context.Context, url string, now time.Time) (*Mapping, error)
	FindByCode(ctx context.Context, code string) (*Mapping, error)
	// MaxID returns the highest persisted id, or 0 for an empty store.
	MaxID(ctx context.Context) (uint64, error)
}

type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const selectLiveByURL = `
	SELECT id, original_url, short_code, expiration_at, created_at
	FROM url_mappings
	WHERE original_url = ? AND expiration_at > ?
	ORDER BY expiration_at DESC
	LIMIT 1
`

const insertMapping = `
	INSERT INTO url_mappings (id, original_url, short_code, expiration_at, created_at)
	VALUES (?, ?, ?, ?, ?)
`

// Insert writes m unconditionally in its own transaction.
func (r *Repository) Insert(ctx context.Context, m *Mapping) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = r.insert(ctx, tx, m); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping %s: %w", m.ShortCode, err)
	}
	return nil
}

// CreateIfAbsent runs the live check and the insert in one transaction. On
// PostgreSQL a transaction-scoped advisory lock on the URL serialises
// concurrent creators; SQLite serialises writers on its own, and the default
// DSN opens write transactions with BEGIN IMMEDIATE.
func (r *Repository) CreateIfAbsent(ctx context.Context, m *Mapping, now time.Time) (_ *Mapping, _ bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if r.db.Dialect == database.Postgres {
		if _, err = tx.ExecContext(ctx, r.db.Rebind(`SELECT pg_advisory_xact_lock(hashtext(?))`), m.OriginalURL); err != nil {
			return nil, false, fmt.Errorf("lock url: %w", err)
		}
	}

	existing, err := scanMapping(tx.QueryRowContext(ctx, r.db.Rebind(selectLiveByURL), m.OriginalURL, now.Unix()))
	switch {
	case err == nil:
		if err = tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("find live mapping: %w", err)
	}

	if err = r.insert(ctx, tx, m); err != nil {
		return nil, false, err
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit mapping %s: %w", m.ShortCode, err)
	}
	return m, true, nil
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, m *Mapping) error {
	if _, err := tx.ExecContext(ctx, r.db.Rebind(insertMapping),
		int64(m.ID),
		m.OriginalURL,
		m.ShortCode,
		m.ExpirationAt.Unix(),
		m.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert mapping %s: %w", m.ShortCode, err)
	}
	return nil
}

func (r *Repository) FindLiveByURL(ctx context.Context, url string, now time.Time) (*Mapping, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(selectLiveByURL), url, now.Unix())
	return scanMapping(row)
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*Mapping, error) {
	query := r.db.Rebind(`
		SELECT id, original_url, short_code, expiration_at, created_at
		FROM url_mappings WHERE short_code = ?
	`)
	row := r.db.QueryRowContext(ctx, query, code)
	return scanMapping(row)
}

func (r *Repository) MaxID(ctx context.Context) (uint64, error) {
	var maxID int64
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM url_mappings").Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("select max id: %w", err)
	}
	return uint64(maxID), nil
}

func scanMapping(s interface {
	Scan(dest ...interface{}) error
}) (*Mapping, error) {
	var (
		m                    Mapping
		id                   int64
		expiresAt, createdAt int64
	)

	err := s.Scan(&id, &m.OriginalURL, &m.ShortCode, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.ID = uint64(id)
	m.ExpirationAt = time.Unix(expiresAt, 0).UTC()
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &m, nil
}
