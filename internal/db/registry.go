package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

// FileName is the name of the database file inside a save location.
const FileName = "world.sqlite3"

// Options tune the connection opened for a save location. They only take
// effect on the first Open of a location.
type Options struct {
	MaxOpenConns int
	BusyTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	return o
}

// Registry hands out one shared Store per save location. Opening a location
// that is already open returns the existing store with its reference count
// incremented; concurrent first opens of a location share a single open.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	group  singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

var defaultRegistry = NewRegistry()

// Open returns the process-wide store for location.
func Open(location string, opts Options) (*Store, error) {
	return defaultRegistry.Open(location, opts)
}

// Open returns the store for location, opening and migrating it if this is
// the first reference.
func (r *Registry) Open(location string, opts Options) (*Store, error) {
	key, err := locationKey(location)
	if err != nil {
		return nil, err
	}

	for {
		if s, refs := r.acquire(key); s != nil {
			log.Debug("Reusing open chunk store", "location", key, "refs", refs)
			return s, nil
		}

		v, err, shared := r.group.Do(key, func() (interface{}, error) {
			r.mu.Lock()
			if s, ok := r.stores[key]; ok {
				r.mu.Unlock()
				return s, nil
			}
			r.mu.Unlock()

			s, err := openStore(key, opts.withDefaults())
			if err != nil {
				return nil, err
			}
			s.registry = r

			r.mu.Lock()
			r.stores[key] = s
			r.mu.Unlock()
			return s, nil
		})
		if err != nil {
			return nil, err
		}

		s := v.(*Store)
		r.mu.Lock()
		if r.stores[key] == s {
			s.refs++
			refs := s.refs
			r.mu.Unlock()
			log.Debug("Acquired chunk store", "location", key, "refs", refs, "shared_open", shared)
			return s, nil
		}
		r.mu.Unlock()
		// The store was released by its other holders before we could take a
		// reference; open it again.
	}
}

// Refs returns the number of open references to location.
func (r *Registry) Refs(location string) int {
	key, err := locationKey(location)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s.refs
	}
	return 0
}

func (r *Registry) acquire(key string) (*Store, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[key]
	if !ok {
		return nil, 0
	}
	s.refs++
	return s, s.refs
}

func (r *Registry) release(s *Store) error {
	r.mu.Lock()
	if s.refs == 0 {
		r.mu.Unlock()
		return nil
	}
	s.refs--
	if refs := s.refs; refs > 0 {
		r.mu.Unlock()
		log.Debug("Released chunk store reference", "location", s.location, "refs", refs)
		return nil
	}
	if r.stores[s.location] == s {
		delete(r.stores, s.location)
	}
	r.mu.Unlock()

	s.closed.Store(true)
	log.Info("Closing chunk store", "location", s.location)
	if err := s.sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func locationKey(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("save location is required")
	}
	abs, err := filepath.Abs(filepath.Clean(location))
	if err != nil {
		return "", fmt.Errorf("failed to resolve save location %q: %w", location, err)
	}
	return abs, nil
}

func openStore(location string, opts Options) (*Store, error) {
	log.Debug("Opening chunk store", "location", location)
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create save location %s: %w", ErrStorageUnavailable, location, err)
	}

	path := filepath.Join(location, FileName)
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
	dsn := "file:" + path + "?" + params.Encode()

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStorageUnavailable, err)
	}

	log.Debug("Configuring database connection pool", "max_open_conns", opts.MaxOpenConns, "busy_timeout", opts.BusyTimeout)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStorageUnavailable, err)
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	s := &Store{
		sqlDB:    sqlDB,
		location: location,
		path:     path,
	}
	s.chunkOps = chunkOps{queries: NewLoggingQueries(sqlDB), isClosed: s.closed.Load}

	log.Info("Chunk store opened", "location", location, "path", path)
	return s, nil
}
