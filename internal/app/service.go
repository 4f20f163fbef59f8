// Package service drives the rating workflow: it builds each rater's queue,
// records submissions in the score store and advances the session.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/formeval/internal/adapters/repository"
	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/internal/domain/queue"
	"github.com/okian/formeval/internal/domain/session"
	"github.com/okian/formeval/pkg/logger"
	"github.com/okian/formeval/pkg/metrics"
)

// State is where a rater's session stands after a call.
type State string

// Submission states.
const (
	AwaitingInput    State = "awaiting_input"
	Submitting       State = "submitting"
	DuplicateSkipped State = "duplicate_skipped"
	Saved            State = "saved"
	SessionComplete  State = "session_complete"
)

// CatalogLoader returns the catalog of videos to rate.
type CatalogLoader func(ctx context.Context) ([]model.CatalogItem, error)

// Draft is a rater's answer for the current item. Index, when set, is the
// queue position the answer was made for; a submission for any other
// position is ignored.
type Draft struct {
	Label model.FormLabel `json:"label"`
	Score int             `json:"score"`
	Index *int            `json:"index,omitempty"`
}

// View is a session snapshot plus the workflow state.
type View struct {
	session.Snapshot
	State    State    `json:"state"`
	Warnings []string `json:"warnings,omitempty"`
}

// Outcome is the result of Submit.
type Outcome struct {
	View
	Record *model.ScoreRecord     `json:"record,omitempty"`
	Sync   *repository.SyncReport `json:"sync,omitempty"`
}

// Progress summarizes how much of the catalog a rater has scored.
type Progress struct {
	Expert    string `json:"expert"`
	Scored    int    `json:"scored"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
}

// Service implements the rating workflow for any number of raters.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	loadItems CatalogLoader
	sessions  *session.Manager
	queueOpts []queue.Option
	adminMode bool

	catalog  []model.CatalogItem
	inflight map[string]struct{}
	started  bool

	logger logger.Logger
}

// New constructs a Service over store and the catalog returned by loadItems.
func New(store repository.Store, loadItems CatalogLoader, opts ...Option) *Service {
	s := &Service{
		store:     store,
		loadItems: loadItems,
		sessions:  session.NewManager(),
		inflight:  make(map[string]struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start pulls the remote table, if any, so the first session sees it.
// Remote failures are returned as warnings and never stop the service.
func (s *Service) Start(ctx context.Context) []string {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info(ctx, "starting rating service", logger.Bool("adminMode", s.adminMode))
	return s.refresh(ctx)
}

// StartSession returns the rater's session, creating it on first use. A new
// session queues every catalog video the rater has not scored, shuffled.
func (s *Service) StartSession(ctx context.Context, expert string) (View, error) {
	expert = strings.TrimSpace(expert)
	if expert == "" {
		return View{}, fmt.Errorf("%w: %w", ErrInvalidExpert, model.ErrMissingExpert)
	}

	var warnings []string
	if _, err := s.sessions.Get(expert); err != nil {
		warnings = s.refresh(ctx)
	}

	st, created, err := s.sessions.GetOrCreate(expert, func() (queue.SessionQueue, error) {
		return s.buildQueue(ctx, expert)
	})
	if err != nil {
		return View{}, err
	}
	if created {
		metrics.RecordSessionStarted()
		metrics.UpdateActiveSessions(s.sessions.Active())
		s.logger.Info(ctx, "session started",
			logger.String("expert", expert),
			logger.String("session", st.ID().String()),
			logger.Int("queued", st.Len()),
		)
	}
	view := s.view(st)
	view.Warnings = warnings
	return view, nil
}

// Current returns the rater's session without changing it.
func (s *Service) Current(_ context.Context, expert string) (View, error) {
	st, err := s.session(expert)
	if err != nil {
		return View{}, err
	}
	v := s.view(st)
	s.mu.RLock()
	if _, busy := s.inflight[st.Expert()]; busy && !v.Complete {
		v.State = Submitting
	}
	s.mu.RUnlock()
	return v, nil
}

// SetDraft stores the rater's in-progress answer for the current item.
func (s *Service) SetDraft(_ context.Context, expert string, label model.FormLabel, score int) (View, error) {
	st, err := s.session(expert)
	if err != nil {
		return View{}, err
	}
	if err := validateDraft(label, score); err != nil {
		return View{}, err
	}
	st.SetDraft(session.Draft{Label: label, Score: score})
	return s.view(st), nil
}

// Submit records the rater's answer for the current item and advances the
// session. A video the rater already scored is skipped without a write.
// Errors leave the session on the same item.
func (s *Service) Submit(ctx context.Context, expert string, d Draft) (Outcome, error) {
	st, err := s.session(expert)
	if err != nil {
		return Outcome{}, err
	}
	if st.Complete() {
		return Outcome{View: s.view(st)}, nil
	}
	if err := validateDraft(d.Label, d.Score); err != nil {
		return Outcome{}, err
	}
	if !s.begin(st.Expert()) {
		v := s.view(st)
		v.State = Submitting
		return Outcome{View: v}, nil
	}
	defer s.end(st.Expert())

	idx := st.Index()
	item, ok := st.Current()
	if !ok {
		return Outcome{View: s.view(st)}, nil
	}
	if d.Index != nil && *d.Index != idx {
		s.logger.Debug(ctx, "ignoring submission for a previous item",
			logger.String("expert", st.Expert()),
			logger.Int("index", *d.Index),
			logger.Int("current", idx),
		)
		return Outcome{View: s.view(st)}, nil
	}
	st.SetDraft(session.Draft{Label: d.Label, Score: d.Score})

	exists, err := s.store.Exists(ctx, st.Expert(), item.VideoName)
	if err != nil {
		return Outcome{}, fmt.Errorf("check existing score: %w", err)
	}
	if exists {
		metrics.RecordSubmissionDuplicate()
		s.logger.Info(ctx, "video already scored, skipping",
			logger.String("expert", st.Expert()),
			logger.String("video", item.VideoName),
		)
		s.advance(ctx, st, idx)
		out := Outcome{View: s.view(st)}
		out.State = s.settle(ctx, st, DuplicateSkipped)
		return out, nil
	}

	rec := model.ScoreRecord{
		Expert:    st.Expert(),
		Video:     item.VideoName,
		Exercise:  item.Exercise,
		FormLabel: d.Label,
		Score:     d.Score,
	}
	report, err := s.write(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}
	metrics.RecordSubmissionSaved()
	s.logger.Info(ctx, "score saved",
		logger.String("expert", rec.Expert),
		logger.String("video", rec.Video),
		logger.String("label", rec.FormLabel.String()),
		logger.Int("score", rec.Score),
	)
	s.advance(ctx, st, idx)

	out := Outcome{View: s.view(st), Record: &rec, Sync: report}
	out.State = s.settle(ctx, st, Saved)
	if report != nil && report.Warning != "" {
		out.Warnings = append(out.Warnings, report.Warning)
	}
	return out, nil
}

// Export returns the rater's rows as a CSV table and the row count.
func (s *Service) Export(ctx context.Context, expert string) ([]byte, int, error) {
	expert = strings.TrimSpace(expert)
	if expert == "" {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidExpert, model.ErrMissingExpert)
	}
	records, err := s.store.ExportFor(ctx, expert)
	if err != nil {
		return nil, 0, err
	}
	data, err := repository.EncodeCSV(records)
	if err != nil {
		return nil, 0, err
	}
	return data, len(records), nil
}

// Reset clears the results table and every session. It needs admin mode.
func (s *Service) Reset(ctx context.Context) error {
	if !s.adminMode {
		return ErrAdminDisabled
	}
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.sessions.ResetAll()
	metrics.UpdateActiveSessions(0)
	s.logger.Warn(ctx, "results table reset")
	return nil
}

// Catalog returns the catalog, loading it on first use.
func (s *Service) Catalog(ctx context.Context) ([]model.CatalogItem, error) {
	items, err := s.catalogItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CatalogItem, len(items))
	copy(out, items)
	return out, nil
}

// Progress counts the rater's scored and remaining catalog videos.
func (s *Service) Progress(ctx context.Context, expert string) (Progress, error) {
	expert = strings.TrimSpace(expert)
	if expert == "" {
		return Progress{}, fmt.Errorf("%w: %w", ErrInvalidExpert, model.ErrMissingExpert)
	}
	items, err := s.catalogItems(ctx)
	if err != nil {
		return Progress{}, err
	}
	records, err := s.store.ExportFor(ctx, expert)
	if err != nil {
		return Progress{}, err
	}
	scored := queue.ScoredSet(records, expert)
	p := Progress{Expert: expert, Total: len(items)}
	for _, it := range items {
		if _, ok := scored[it.VideoName]; ok {
			p.Scored++
		}
	}
	p.Remaining = p.Total - p.Scored
	return p, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":        s.started,
		"adminMode":      s.adminMode,
		"catalogVideos":  len(s.catalog),
		"sessions":       s.sessions.Len(),
		"activeSessions": s.sessions.Active(),
	}
	s.mu.RUnlock()

	if records, err := s.store.Load(ctx); err == nil {
		stats["records"] = len(records)
	} else {
		stats["recordsError"] = err.Error()
	}
	if rs, ok := s.store.(interface {
		Pending() bool
		Degraded() bool
	}); ok {
		stats["remotePending"] = rs.Pending()
		stats["remoteDegraded"] = rs.Degraded()
	}
	metrics.UpdateActiveSessions(s.sessions.Active())
	return stats
}

func (s *Service) session(expert string) (*session.State, error) {
	expert = strings.TrimSpace(expert)
	if expert == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpert, model.ErrMissingExpert)
	}
	st, err := s.sessions.Get(expert)
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("%w for %q", ErrNoSession, expert)
	}
	return st, err
}

func (s *Service) buildQueue(ctx context.Context, expert string) (queue.SessionQueue, error) {
	items, err := s.catalogItems(ctx)
	if err != nil {
		return queue.SessionQueue{}, err
	}
	records, err := s.store.ExportFor(ctx, expert)
	if err != nil {
		return queue.SessionQueue{}, fmt.Errorf("load scored videos: %w", err)
	}
	return queue.Build(items, expert, queue.ScoredSet(records, expert), s.queueOpts...), nil
}

// catalogItems caches the first successful load.
func (s *Service) catalogItems(ctx context.Context) ([]model.CatalogItem, error) {
	s.mu.RLock()
	items := s.catalog
	s.mu.RUnlock()
	if items != nil {
		return items, nil
	}

	items, err := s.loadItems(ctx)
	if err != nil {
		s.logger.Error(ctx, "catalog load failed", logger.Error(err))
		return nil, err
	}
	if items == nil {
		items = []model.CatalogItem{}
	}
	s.mu.Lock()
	s.catalog = items
	s.mu.Unlock()
	s.logger.Info(ctx, "catalog loaded", logger.Int("videos", len(items)))
	return items, nil
}

func (s *Service) refresh(ctx context.Context) []string {
	synced, ok := s.store.(repository.SyncedStore)
	if !ok {
		return nil
	}
	if report := synced.Refresh(ctx); report.Warning != "" {
		return []string{report.Warning}
	}
	return nil
}

func (s *Service) write(ctx context.Context, rec model.ScoreRecord) (*repository.SyncReport, error) {
	if synced, ok := s.store.(repository.SyncedStore); ok {
		report, err := synced.UpsertSynced(ctx, rec)
		if err != nil {
			return nil, err
		}
		return &report, nil
	}
	return nil, s.store.Upsert(ctx, rec)
}

// advance moves past idx. A concurrent advance already did it.
func (s *Service) advance(ctx context.Context, st *session.State, idx int) {
	if err := st.AdvanceFrom(idx); err != nil {
		s.logger.Debug(ctx, "session already advanced",
			logger.String("expert", st.Expert()),
			logger.Error(err),
		)
	}
}

// settle returns SessionComplete once the queue is exhausted, else state.
func (s *Service) settle(ctx context.Context, st *session.State, state State) State {
	if !st.Complete() {
		return state
	}
	metrics.RecordSessionCompleted()
	metrics.UpdateActiveSessions(s.sessions.Active())
	s.logger.Info(ctx, "session complete",
		logger.String("expert", st.Expert()),
		logger.Int("rated", st.Len()),
	)
	return SessionComplete
}

func (s *Service) begin(expert string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[expert]; busy {
		return false
	}
	s.inflight[expert] = struct{}{}
	return true
}

func (s *Service) end(expert string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, expert)
}

func (s *Service) view(st *session.State) View {
	snap := st.Snapshot()
	state := AwaitingInput
	if snap.Complete {
		state = SessionComplete
	}
	return View{Snapshot: snap, State: state}
}

func validateDraft(label model.FormLabel, score int) error {
	if !label.Valid() {
		metrics.RecordSubmissionRejected("invalid_label")
		return fmt.Errorf("%w: %w", ErrInvalidDraft, model.ErrInvalidLabel)
	}
	if err := model.ValidateScore(score); err != nil {
		metrics.RecordSubmissionRejected("invalid_score")
		return fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}
	return nil
}
