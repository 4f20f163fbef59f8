package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/formeval/internal/adapters/remote"
	"github.com/okian/formeval/internal/domain/dedupe"
	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/pkg/logger"
	"github.com/okian/formeval/pkg/metrics"
)

// RemoteSync layers a remote copy of the table over a local store. The local
// store is the source of truth for the running process: remote failures are
// logged and reported but never undo a local write. A push that fails is
// retried on the next write.
type RemoteSync struct {
	local  LocalStore
	remote remote.Store
	id     string
	logger logger.Logger

	mu            sync.Mutex
	version       string
	remoteExists  bool
	remoteRecords []model.ScoreRecord
	pending       bool
	degraded      bool
	// resetPending holds until an empty table reaches the remote after Reset.
	resetPending bool
}

// SyncOption applies a configuration option to the RemoteSync.
type SyncOption func(*RemoteSync)

// WithSyncLogger sets the logger used by the sync layer.
func WithSyncLogger(l logger.Logger) SyncOption {
	return func(s *RemoteSync) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRemoteSync composes local with the remote object id.
func NewRemoteSync(local LocalStore, rs remote.Store, id string, opts ...SyncOption) *RemoteSync {
	s := &RemoteSync{
		local:  local,
		remote: rs,
		id:     id,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the remote table and merges it under the local rows. A
// missing remote object is an empty table. Any other failure leaves the
// store in local-only mode until the next successful fetch.
func (s *RemoteSync) Refresh(ctx context.Context) SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fetchLocked(ctx); err != nil {
		metrics.RecordRemoteFetchFailure()
		s.degraded = true
		s.logger.Warn(ctx, "remote fetch failed; continuing with local scores",
			logger.String("object", s.id),
			logger.Error(err),
		)
		return s.reportLocked(false, fmt.Sprintf("remote scores unavailable, working locally: %v", err))
	}
	s.degraded = false

	if s.resetPending {
		return s.retryResetLocked(ctx)
	}

	remoteRecords := s.remoteRecords
	if _, err := s.local.Apply(ctx, func(local []model.ScoreRecord) []model.ScoreRecord {
		return dedupe.Merge(remoteRecords, local)
	}); err != nil {
		s.logger.Error(ctx, "merging remote scores into local table failed", logger.Error(err))
		return s.reportLocked(false, fmt.Sprintf("could not merge remote scores: %v", err))
	}
	return s.reportLocked(false, "")
}

// UpsertSynced writes rec locally, merged with the last known remote rows,
// then pushes the merged table. Only a local failure is returned as error.
func (s *RemoteSync) UpsertSynced(ctx context.Context, rec model.ScoreRecord) (SyncReport, error) {
	if err := rec.Validate(); err != nil {
		return SyncReport{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	remoteRecords := s.knownRemoteLocked()
	merged, err := s.local.Apply(ctx, func(local []model.ScoreRecord) []model.ScoreRecord {
		return dedupe.Merge(remoteRecords, local, []model.ScoreRecord{rec})
	})
	if err != nil {
		return SyncReport{}, err
	}
	s.pending = true
	return s.pushLocked(ctx, merged), nil
}

// Upsert implements Store. Remote failures are logged only; use UpsertSynced
// to observe them.
func (s *RemoteSync) Upsert(ctx context.Context, rec model.ScoreRecord) error {
	_, err := s.UpsertSynced(ctx, rec)
	return err
}

// Load implements Store from the local table.
func (s *RemoteSync) Load(ctx context.Context) ([]model.ScoreRecord, error) {
	return s.local.Load(ctx)
}

// Save implements Store. The table is written locally and pushed.
func (s *RemoteSync) Save(ctx context.Context, records []model.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.local.Save(ctx, records); err != nil {
		return err
	}
	s.pending = true
	s.pushLocked(ctx, dedupe.KeepLast(records))
	return nil
}

// Exists implements Store from the local table.
func (s *RemoteSync) Exists(ctx context.Context, expert, video string) (bool, error) {
	return s.local.Exists(ctx, expert, video)
}

// ExportFor implements Store from the local table.
func (s *RemoteSync) ExportFor(ctx context.Context, expert string) ([]model.ScoreRecord, error) {
	return s.local.ExportFor(ctx, expert)
}

// Reset clears the local table and, best effort, the remote one.
func (s *RemoteSync) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.local.Reset(ctx); err != nil {
		return err
	}
	s.remoteRecords = nil
	s.pending = true
	s.resetPending = true
	s.pushLocked(ctx, nil)
	return nil
}

// Pending reports whether local rows still wait to be pushed.
func (s *RemoteSync) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Degraded reports whether the last fetch failed.
func (s *RemoteSync) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// knownRemoteLocked returns the remote rows a merge may include. Until a
// reset has been pushed the remote still holds cleared rows, so it counts
// as empty.
func (s *RemoteSync) knownRemoteLocked() []model.ScoreRecord {
	if s.resetPending {
		return nil
	}
	return s.remoteRecords
}

// retryResetLocked pushes the local table over a remote that has not yet
// seen the last reset, without merging the remote rows back in.
func (s *RemoteSync) retryResetLocked(ctx context.Context) SyncReport {
	records, err := s.local.Load(ctx)
	if err != nil {
		s.logger.Error(ctx, "reading local table for reset retry failed", logger.Error(err))
		return s.reportLocked(false, fmt.Sprintf("could not read local scores: %v", err))
	}
	s.pending = true
	return s.pushLocked(ctx, records)
}

func (s *RemoteSync) fetchLocked(ctx context.Context) error {
	obj, err := s.remote.Fetch(ctx, s.id)
	if errors.Is(err, remote.ErrNotFound) {
		s.version = ""
		s.remoteExists = false
		s.remoteRecords = nil
		return nil
	}
	if err != nil {
		return err
	}
	records, err := DecodeCSV(obj.Content)
	if err != nil {
		return fmt.Errorf("remote table: %w", err)
	}
	s.version = obj.Version
	s.remoteExists = true
	s.remoteRecords = dedupe.KeepLast(records)
	return nil
}

func (s *RemoteSync) pushLocked(ctx context.Context, records []model.ScoreRecord) SyncReport {
	content, err := EncodeCSV(records)
	if err != nil {
		return s.reportLocked(false, fmt.Sprintf("could not encode scores for upload: %v", err))
	}

	var version string
	if s.remoteExists {
		version, err = s.remote.Update(ctx, s.id, content, s.version)
	} else {
		version, err = s.remote.Create(ctx, s.id, content)
	}
	if err != nil {
		reason := "error"
		if errors.Is(err, remote.ErrVersionConflict) {
			reason = "conflict"
			// Pick up the newer remote rows so the retry merges them in.
			if ferr := s.fetchLocked(ctx); ferr != nil {
				s.logger.Warn(ctx, "refetch after conflict failed", logger.Error(ferr))
			}
		}
		metrics.RecordRemotePushFailure(reason)
		s.logger.Warn(ctx, "remote push failed; local scores kept, will retry on next save",
			logger.String("object", s.id),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return s.reportLocked(false, fmt.Sprintf("scores saved locally but not uploaded: %v", err))
	}

	metrics.RecordRemotePush()
	s.version = version
	s.remoteExists = true
	s.remoteRecords = append([]model.ScoreRecord(nil), records...)
	s.pending = false
	s.resetPending = false
	s.degraded = false
	return s.reportLocked(true, "")
}

func (s *RemoteSync) reportLocked(pushed bool, warning string) SyncReport {
	return SyncReport{
		Pushed:   pushed,
		Pending:  s.pending,
		Degraded: s.degraded,
		Warning:  warning,
	}
}
