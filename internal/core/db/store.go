package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/apptentive/engagekit/internal/manifest"
	"github.com/apptentive/engagekit/internal/targeting"
	"github.com/apptentive/engagekit/internal/types"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Revision is one stored manifest document.
type Revision struct {
	ID            types.RevisionID
	Source        string
	Checksum      string
	Document      []byte
	Interactions  int
	ExpirySeconds float64
	InstalledAt   time.Time
}

// Manifest decodes the stored document.
func (r *Revision) Manifest() (*manifest.Manifest, error) {
	return manifest.Decode(r.Document)
}

type revisionRow struct {
	ID            string  `db:"revision_id"`
	Source        string  `db:"source"`
	Checksum      string  `db:"checksum"`
	Document      string  `db:"document"`
	Interactions  int     `db:"interactions"`
	ExpirySeconds float64 `db:"expiry_seconds"`
	InstalledAt   dbTime  `db:"installed_at"`
}

func (row revisionRow) revision() *Revision {
	return &Revision{
		ID:            types.RevisionID(row.ID),
		Source:        row.Source,
		Checksum:      row.Checksum,
		Document:      []byte(row.Document),
		Interactions:  row.Interactions,
		ExpirySeconds: row.ExpirySeconds,
		InstalledAt:   row.InstalledAt.Time,
	}
}

// StoreOption configures a ManifestStore.
type StoreOption func(*ManifestStore)

// WithStoreClock sets the clock used for installed_at and prune cutoffs.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *ManifestStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *ManifestStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ManifestStore records every distinct manifest installed per source.
type ManifestStore struct {
	db      *sqlx.DB
	queries *Queries
	now     func() time.Time
	logger  *slog.Logger
}

// NewManifestStore loads the named queries for db. The schema must already
// be migrated (see MigrateUp).
func NewManifestStore(db *sqlx.DB, opts ...StoreOption) (*ManifestStore, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}

	s := &ManifestStore{
		db:      db,
		queries: queries,
		now:     time.Now,
		logger:  slog.Default().With("component", "manifest_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validSource(source string) error {
	if source != targeting.SourceServer && source != targeting.SourceOverride {
		return fmt.Errorf("unknown manifest source %q (expected %s or %s)", source, targeting.SourceServer, targeting.SourceOverride)
	}
	return nil
}

// Save validates document as a manifest and stores it as the newest revision
// for source. Saving the same document as the current revision is a no-op
// that returns the existing revision.
func (s *ManifestStore) Save(ctx context.Context, source string, document []byte) (*Revision, error) {
	if err := validSource(source); err != nil {
		return nil, err
	}

	m, err := manifest.Decode(document)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(document)
	checksum := fmt.Sprintf("%x", sum)

	latest, err := s.Latest(ctx, source)
	switch {
	case err == nil:
		if latest.Checksum == checksum {
			s.logger.Debug("manifest unchanged", "source", source, "revision_id", latest.ID)
			return latest, nil
		}
	case errors.Is(err, types.ErrNoManifest):
	default:
		return nil, err
	}

	rev := &Revision{
		ID:            types.NewRevisionID(),
		Source:        source,
		Checksum:      checksum,
		Document:      document,
		Interactions:  len(m.Interactions),
		ExpirySeconds: m.Expiry,
		InstalledAt:   s.now().UTC().Truncate(time.Second),
	}

	_, err = s.queries.ExecContext(ctx, "insert-revision",
		string(rev.ID), rev.Source, rev.Checksum, string(rev.Document),
		rev.Interactions, rev.ExpirySeconds, timeArg(s.db.DriverName(), rev.InstalledAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save manifest revision: %w", err)
	}

	s.logger.Info("manifest revision saved",
		"source", source,
		"revision_id", rev.ID,
		"interactions", rev.Interactions,
	)
	return rev, nil
}

// Latest returns the newest revision for source, or types.ErrNoManifest.
func (s *ManifestStore) Latest(ctx context.Context, source string) (*Revision, error) {
	if err := validSource(source); err != nil {
		return nil, err
	}

	var row revisionRow
	if err := s.queries.GetContext(ctx, "latest-revision", &row, source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no %s revision stored", types.ErrNoManifest, source)
		}
		return nil, fmt.Errorf("failed to query latest revision: %w", err)
	}
	return row.revision(), nil
}

// Get returns the revision with the given id, or types.ErrNoManifest.
func (s *ManifestStore) Get(ctx context.Context, id types.RevisionID) (*Revision, error) {
	var row revisionRow
	if err := s.queries.GetContext(ctx, "get-revision", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: revision %s not found", types.ErrNoManifest, id)
		}
		return nil, fmt.Errorf("failed to query revision: %w", err)
	}
	return row.revision(), nil
}

// List returns up to limit revisions for source, newest first.
func (s *ManifestStore) List(ctx context.Context, source string, limit int) ([]*Revision, error) {
	if err := validSource(source); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []revisionRow
	if err := s.queries.SelectContext(ctx, "list-revisions", &rows, source, limit); err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}

	revs := make([]*Revision, len(rows))
	for i, row := range rows {
		revs[i] = row.revision()
	}
	return revs, nil
}

// Prune deletes revisions installed more than olderThan ago. The newest
// revision of each source is always kept.
func (s *ManifestStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %v", olderThan)
	}

	cutoff := s.now().Add(-olderThan)
	result, err := s.queries.ExecContext(ctx, "prune-revisions", timeArg(s.db.DriverName(), cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune revisions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned revisions: %w", err)
	}
	return n, nil
}
