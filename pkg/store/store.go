// Package store caches compiled images in SQLite, keyed by source hash.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/loxvm/pkg/image"
)

var log = commonlog.GetLogger("loxvm.store")

var (
	// ErrNotFound indicates no image is cached for the requested hash.
	ErrNotFound = errors.New("image not found")

	// ErrStale indicates the cached image came from another compiler or
	// format version and must be rebuilt.
	ErrStale = errors.New("cached image is stale")
)

// Store is a compile cache backed by a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path. Parent directories are
// created as needed. The path ":memory:" opens a private in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers on a file database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL UNIQUE,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an image under its source hash, replacing any previous entry.
func (s *Store) Put(img *image.Image) error {
	if img.SourceHash == "" {
		return errors.New("storing image: missing source hash")
	}
	data, err := image.Marshal(img)
	if err != nil {
		return fmt.Errorf("marshaling image: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO units (id, source_hash, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(source_hash) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		uuid.New().String(), img.SourceHash, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	log.Debugf("cached image %s (%d bytes)", short(img.SourceHash), len(data))
	return nil
}

// Get loads the image cached for a source hash. It returns ErrNotFound
// when nothing is cached, ErrStale when the entry was compiled by another
// compiler or format version, and an error wrapping
// image.ErrVersionUnsupported when it was written by a newer build.
func (s *Store) Get(sourceHash string) (*image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM units WHERE source_hash = ?", sourceHash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}

	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cached image %s: %w", short(sourceHash), err)
	}
	if !img.Current() {
		log.Debugf("stale image %s (format %d, compiler %d)", short(sourceHash), img.Version, img.Compiler)
		return nil, fmt.Errorf("%s: %w", short(sourceHash), ErrStale)
	}
	log.Debugf("cache hit %s", short(sourceHash))
	return img, nil
}

// Delete removes the entry for a source hash, if any.
func (s *Store) Delete(sourceHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM units WHERE source_hash = ?", sourceHash); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

// Count returns the number of cached images.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM units").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
