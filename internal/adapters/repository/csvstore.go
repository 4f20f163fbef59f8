package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/okian/formeval/internal/domain/dedupe"
	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/pkg/logger"
	"github.com/okian/formeval/pkg/metrics"
)

// Default CSV store configuration constants.
const (
	defaultLockRetryDelay = 25 * time.Millisecond
	defaultLockTimeout    = 10 * time.Second
	tableFileMode         = 0o644
)

// CSVStore keeps the results table in a CSV file. Every write rewrites the
// whole file through a temp file and rename. Read-modify-write cycles hold an
// advisory lock on "<path>.lock" so separate processes sharing the file do
// not overwrite each other's rows.
type CSVStore struct {
	path string

	mu   sync.Mutex
	lock *flock.Flock

	lockRetryDelay time.Duration
	lockTimeout    time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the CSVStore.
type Option func(*CSVStore)

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(s *CSVStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockTimeout bounds how long a write waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *CSVStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLockRetryDelay sets the polling interval while waiting for the lock.
func WithLockRetryDelay(d time.Duration) Option {
	return func(s *CSVStore) {
		if d > 0 {
			s.lockRetryDelay = d
		}
	}
}

// OpenCSVStore opens the table at path, creating it with a header row when
// it does not exist yet.
func OpenCSVStore(ctx context.Context, path string, opts ...Option) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("scores path must not be empty")
	}
	s := &CSVStore{
		path:           path,
		lock:           flock.New(path + ".lock"),
		lockRetryDelay: defaultLockRetryDelay,
		lockTimeout:    defaultLockTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create scores dir: %w", err)
	}
	err := s.withLock(ctx, func() error {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat scores table: %w", err)
		}
		s.logger.Info(ctx, "creating scores table", logger.String("path", path))
		return s.writeLocked(nil)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the table location.
func (s *CSVStore) Path() string { return s.path }

// Load reads the table. Duplicate keys left by older writers are collapsed,
// keeping the last row.
func (s *CSVStore) Load(ctx context.Context) ([]model.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	records, err := s.readFile()
	metrics.RecordStoreLatency("load", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordStoreError("load")
		return nil, err
	}
	return records, nil
}

// Save replaces the table with records.
func (s *CSVStore) Save(ctx context.Context, records []model.ScoreRecord) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	deduped := dedupe.KeepLast(records)
	return s.withLock(ctx, func() error {
		return s.writeLocked(deduped)
	})
}

// Exists reports whether (expert, video) is in the table. The table is
// re-read so rows written by other processes are seen.
func (s *CSVStore) Exists(ctx context.Context, expert, video string) (bool, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return dedupe.NewIndex(records).Contains(expert, video), nil
}

// Upsert replaces the row with rec's key or appends a new one.
func (s *CSVStore) Upsert(ctx context.Context, rec model.ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	_, err := s.Apply(ctx, func(records []model.ScoreRecord) []model.ScoreRecord {
		out, replaced := dedupe.Upsert(records, rec)
		if replaced {
			s.logger.Debug(ctx, "replacing score",
				logger.String("expert", rec.Expert),
				logger.String("video", rec.Video),
			)
		}
		return out
	})
	return err
}

// Apply runs fn over the current table and writes its result, all under the
// store lock.
func (s *CSVStore) Apply(ctx context.Context, fn func([]model.ScoreRecord) []model.ScoreRecord) ([]model.ScoreRecord, error) {
	var written []model.ScoreRecord
	err := s.withLock(ctx, func() error {
		current, err := s.readFile()
		if err != nil {
			return err
		}
		written = dedupe.KeepLast(fn(current))
		return s.writeLocked(written)
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// ExportFor returns the rows of expert.
func (s *CSVStore) ExportFor(ctx context.Context, expert string) ([]model.ScoreRecord, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return filterExpert(records, expert), nil
}

// Reset truncates the table to its header.
func (s *CSVStore) Reset(ctx context.Context) error {
	s.logger.Warn(ctx, "resetting scores table", logger.String("path", s.path))
	return s.withLock(ctx, func() error {
		return s.writeLocked(nil)
	})
}

func (s *CSVStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	ok, err := s.lock.TryLockContext(lockCtx, s.lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		metrics.RecordStoreError("lock")
		return fmt.Errorf("lock scores table: %w", err)
	}
	if !ok {
		metrics.RecordStoreError("lock")
		return fmt.Errorf("%w: %s", ErrLockTimeout, s.path)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn(ctx, "failed to release scores lock", logger.Error(err))
		}
	}()
	return fn()
}

func (s *CSVStore) readFile() ([]model.ScoreRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read scores table: %w", err)
	}
	records, err := DecodeCSV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return dedupe.KeepLast(records), nil
}

// writeLocked must be called with the store lock held.
func (s *CSVStore) writeLocked(records []model.ScoreRecord) error {
	start := time.Now()
	data, err := EncodeCSV(records)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, tableFileMode); err != nil {
		metrics.RecordStoreError("write")
		return err
	}
	metrics.RecordStoreLatency("write", float64(time.Since(start).Milliseconds()))
	metrics.UpdateRecordsTotal(len(records))
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".scores-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
