package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/observability/metrics"
	"rss-digest/internal/observability/slo"
	"rss-digest/internal/observability/tracing"
	"rss-digest/internal/repository"
	"rss-digest/internal/usecase/categorize"
	"rss-digest/internal/usecase/fetch"
	"rss-digest/internal/usecase/merge"
	"rss-digest/internal/usecase/parse"
)

// Cycle outcomes, also used as the refresh_cycles_total label.
const (
	OutcomeRefreshed        = "refreshed"
	OutcomeFresh            = "fresh"
	OutcomeInFlight         = "in_flight"
	OutcomeAllSourcesFailed = "all_sources_failed"
	OutcomePersistFailed    = "persist_failed"
)

// DefaultTTL is the minimum age of the store before a non-forced refresh runs.
const DefaultTTL = 30 * time.Minute

// DefaultMaxDiscoveredCategories caps the discovered category overlay.
const DefaultMaxDiscoveredCategories = 16

// SourceFetcher fetches every source and reports one result per source in
// registry order.
type SourceFetcher interface {
	FetchAll(ctx context.Context, sources []entity.FeedSource) []fetch.SourceResult
}

// Config holds the store policy.
type Config struct {
	Sources                 []entity.FeedSource
	TTL                     time.Duration
	MaxRetained             int
	StalenessWindow         time.Duration
	MaxDiscoveredCategories int
	StatusStaleAfter        time.Duration
}

// Deps are the collaborators of the Service. Now defaults to time.Now.
type Deps struct {
	Fetcher     SourceFetcher
	Parser      *parse.Parser
	Categorizer *categorize.Categorizer
	Repo        repository.SnapshotRepository
	Now         func() time.Time
}

// Result describes one Refresh call.
type Result struct {
	Outcome       string
	Ran           bool
	Inserted      int
	Merged        int
	Dropped       int
	Total         int
	FailedSources []string
	Duration      time.Duration
	LastRefreshAt time.Time

	// NewArticles are the retained articles this cycle added to the
	// persisted snapshot, newest first.
	NewArticles []entity.Article `json:"-"`
}

// Service is the article store. Reads run concurrently; at most one refresh
// cycle runs at a time and a second request during a cycle is a no-op.
//
// The persisted snapshot is the source of truth. A cycle merges its drafts
// into the snapshot as currently stored, through the backend's Update when it
// has one, so processes sharing a backend never overwrite each other's
// articles. No cycle runs before a snapshot has been read successfully.
type Service struct {
	cfg         Config
	fetcher     SourceFetcher
	parser      *parse.Parser
	categorizer *categorize.Categorizer
	repo        repository.SnapshotRepository
	now         func() time.Time
	categories  *entity.CategoryRegistry

	// cycleMu serializes Load and refresh cycles; Refresh only tries it.
	cycleMu sync.Mutex

	mu            sync.RWMutex
	articles      []entity.Article
	lastRefreshAt time.Time
	lastCycle     Result
	loaded        bool
	// unsaved is set while articles hold a cycle whose save failed.
	unsaved bool
}

// NewService wires the store. Zero config values take the defaults.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = merge.DefaultMaxRetained
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = merge.DefaultStalenessWindow
	}
	if cfg.MaxDiscoveredCategories < 0 {
		cfg.MaxDiscoveredCategories = 0
	}
	if cfg.StatusStaleAfter <= 0 {
		cfg.StatusStaleAfter = DefaultStatusStaleAfter
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Service{
		cfg:         cfg,
		fetcher:     deps.Fetcher,
		parser:      deps.Parser,
		categorizer: deps.Categorizer,
		repo:        deps.Repo,
		now:         deps.Now,
		categories:  entity.NewCategoryRegistry(predefinedCategories(deps.Categorizer, cfg.Sources), cfg.MaxDiscoveredCategories),
	}
}

// predefinedCategories lists vocabulary names, the default and fallback
// categories and every source default, in that order.
func predefinedCategories(c *categorize.Categorizer, sources []entity.FeedSource) []string {
	names := append([]string{}, c.Names()...)
	names = append(names, c.DefaultCategory(), c.FallbackCategory())
	for _, src := range sources {
		names = append(names, src.DefaultCategory)
	}
	return names
}

// Load replaces the in-memory store with the persisted snapshot. A missing
// snapshot is an empty store. It waits for a running cycle to finish.
func (s *Service) Load(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.load(ctx)
}

// load reads and adopts the snapshot. The caller holds cycleMu.
func (s *Service) load(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	kept, dropped := s.adopt(snap)

	slog.Info("article store loaded",
		slog.Int("articles", len(kept)),
		slog.Int("dropped", dropped),
		slog.Time("last_refresh_at", snap.LastRefreshAt))
	return nil
}

// adopt makes snap the in-memory store, recomputing isNew and applying the
// retention cap.
func (s *Service) adopt(snap entity.Snapshot) ([]entity.Article, int) {
	kept, dropped := merge.Retain(merge.MarkStale(snap.Articles, s.now(), s.cfg.StalenessWindow), s.cfg.MaxRetained)

	s.mu.Lock()
	s.articles = kept
	s.lastRefreshAt = snap.LastRefreshAt
	s.loaded = true
	s.unsaved = false
	s.mu.Unlock()
	s.syncCategories(kept)
	return kept, dropped
}

// Loaded reports whether a snapshot has been read successfully.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Refresh runs one cycle when force is set, the store was never refreshed or
// its age exceeds the TTL. Until a snapshot has been loaded it first retries
// the load and, when that fails, returns ErrPersistence without fetching. A
// persistence failure is returned wrapped in ErrPersistence; every other
// degraded outcome (fresh store, cycle already running, every source
// failing) is reported through Result.Outcome only.
func (s *Service) Refresh(ctx context.Context, force bool) (Result, error) {
	if !s.cycleMu.TryLock() {
		metrics.RecordRefreshCycle(OutcomeInFlight, false, 0)
		slog.Debug("refresh already running, skipping")
		return Result{Outcome: OutcomeInFlight, LastRefreshAt: s.LastRefreshAt()}, nil
	}
	defer s.cycleMu.Unlock()

	if !s.Loaded() {
		if err := s.load(ctx); err != nil {
			res := Result{Outcome: OutcomePersistFailed}
			metrics.RecordRefreshCycle(res.Outcome, false, 0)
			slog.Error("snapshot not loaded, refresh skipped", slog.Any("error", err))
			s.recordCycle(res)
			return res, err
		}
	}

	now := s.now()
	if !force && s.fresh(ctx, now) {
		metrics.RecordRefreshCycle(OutcomeFresh, false, 0)
		s.mu.RLock()
		res := Result{Outcome: OutcomeFresh, Total: len(s.articles), LastRefreshAt: s.lastRefreshAt}
		s.mu.RUnlock()
		return res, nil
	}

	ctx, span := tracing.StartSpan(ctx, "refresh.cycle", attribute.Bool("refresh.force", force))
	defer span.End()

	start := time.Now()
	res, err := s.runCycle(ctx, now)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("refresh.outcome", res.Outcome),
		attribute.Int("refresh.inserted", res.Inserted),
		attribute.Int("refresh.failed_sources", len(res.FailedSources)))
	if err != nil {
		tracing.RecordError(span, err)
	}
	metrics.RecordRefreshCycle(res.Outcome, res.Ran, res.Duration)
	if res.Ran {
		slo.ObserveSourceSuccess(len(s.cfg.Sources), len(res.FailedSources))
	}
	s.recordCycle(res)

	return res, err
}

func (s *Service) recordCycle(res Result) {
	s.mu.Lock()
	s.lastCycle = res
	s.mu.Unlock()
}

// fresh reports whether the store is within the TTL. When the in-memory copy
// is past it, the snapshot is read again first: another process sharing the
// backend may have refreshed it in the meantime.
func (s *Service) fresh(ctx context.Context, now time.Time) bool {
	within := func(last time.Time) bool {
		return !last.IsZero() && now.Sub(last) <= s.cfg.TTL
	}

	s.mu.RLock()
	last, unsaved := s.lastRefreshAt, s.unsaved
	s.mu.RUnlock()
	if within(last) {
		return true
	}
	if unsaved {
		return false
	}

	snap, err := s.repo.Load(ctx)
	if err != nil {
		slog.Warn("snapshot re-read failed, refreshing", slog.Any("error", err))
		return false
	}
	if !within(snap.LastRefreshAt) || !snap.LastRefreshAt.After(last) {
		return false
	}
	s.adopt(snap)
	slog.Debug("snapshot refreshed elsewhere, adopted",
		slog.Time("last_refresh_at", snap.LastRefreshAt))
	return true
}

func (s *Service) runCycle(ctx context.Context, now time.Time) (Result, error) {
	results := s.fetcher.FetchAll(ctx, s.cfg.Sources)

	s.mu.RLock()
	pending, unsaved, lastRefreshAt := s.articles, s.unsaved, s.lastRefreshAt
	s.mu.RUnlock()

	res := Result{Ran: true, LastRefreshAt: lastRefreshAt}
	for _, r := range results {
		if !r.OK() {
			res.FailedSources = append(res.FailedSources, r.Source.Name)
		}
	}
	if len(results) > 0 && len(res.FailedSources) == len(results) {
		res.Outcome = OutcomeAllSourcesFailed
		res.Total = len(pending)
		slog.Warn("every source failed, store left unchanged",
			slog.Int("sources", len(results)))
		return res, nil
	}

	drafts := s.parser.NormalizeAll(results)
	s.categorizer.Apply(drafts)

	var (
		kept    []entity.Article
		added   []entity.Article
		st      merge.Stats
		dropped int
		built   bool
	)
	build := func(current entity.Snapshot) entity.Snapshot {
		base := current.Articles
		if unsaved {
			// 保存に失敗した前回サイクルの結果も引き継ぐ
			base = merge.Union(base, pending)
		}
		var merged []entity.Article
		merged, st = merge.Merge(base, drafts, now)
		kept, dropped = merge.Retain(merge.MarkStale(merged, now, s.cfg.StalenessWindow), s.cfg.MaxRetained)
		added = notIn(kept, current.Articles)
		built = true
		return entity.Snapshot{Articles: kept, LastRefreshAt: now}
	}
	saveErr := s.commit(ctx, build)

	if !built {
		res.Outcome = OutcomePersistFailed
		res.Total = len(pending)
		slog.Error("failed to read snapshot before merge, store left unchanged",
			slog.Any("error", saveErr))
		return res, fmt.Errorf("%w: %w", ErrPersistence, saveErr)
	}

	res.Inserted, res.Merged, res.Dropped, res.Total = st.Inserted, st.Merged, dropped, len(kept)
	metrics.RecordMerge(st.Inserted, st.Merged)
	metrics.RecordRetentionDropped(dropped)

	s.mu.Lock()
	s.articles = kept
	s.unsaved = saveErr != nil
	if saveErr == nil {
		s.lastRefreshAt = now
	}
	s.mu.Unlock()
	s.syncCategories(kept)

	if saveErr != nil {
		res.Outcome = OutcomePersistFailed
		slog.Error("failed to persist snapshot",
			slog.Int("articles", len(kept)),
			slog.Any("error", saveErr))
		return res, fmt.Errorf("%w: save: %w", ErrPersistence, saveErr)
	}

	res.Outcome = OutcomeRefreshed
	res.LastRefreshAt = now
	res.NewArticles = added
	metrics.RecordRefreshSuccess(now)
	slog.Info("refresh cycle completed",
		slog.Int("drafts", len(drafts)),
		slog.Int("inserted", st.Inserted),
		slog.Int("merged", st.Merged),
		slog.Int("dropped", dropped),
		slog.Int("total", len(kept)),
		slog.Any("failed_sources", res.FailedSources))
	return res, nil
}

// commit stores build's result on top of the current snapshot. Backends
// without Update get a plain read followed by a save.
func (s *Service) commit(ctx context.Context, build func(entity.Snapshot) entity.Snapshot) error {
	if u, ok := s.repo.(repository.SnapshotUpdater); ok {
		return u.Update(ctx, func(current entity.Snapshot) (entity.Snapshot, error) {
			return build(current), nil
		})
	}
	current, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return s.repo.Save(ctx, build(current))
}

// notIn copies the articles of kept whose id is absent from stored.
func notIn(kept, stored []entity.Article) []entity.Article {
	seen := make(map[string]struct{}, len(stored))
	for _, a := range stored {
		seen[a.ID] = struct{}{}
	}
	var out []entity.Article
	for _, a := range kept {
		if _, ok := seen[a.ID]; !ok {
			out = append(out, a.Clone())
		}
	}
	return out
}

// syncCategories prunes the discovered overlay to what articles still carry
// and records any new names.
func (s *Service) syncCategories(articles []entity.Article) {
	s.categories.Prune(merge.CategorySet(articles))
	for _, a := range articles {
		if rejected := s.categories.Observe(a.Categories...); len(rejected) > 0 {
			slog.Warn("discovered category overlay is full",
				slog.String("article_id", a.ID),
				slog.Any("rejected", rejected))
		}
	}
	metrics.UpdateStoreGauges(len(articles), merge.CountNew(articles), len(s.categories.Discovered()))
}

// ResetDiscoveredCategories clears the discovered overlay. Names carried by
// stored articles come back on the next cycle.
func (s *Service) ResetDiscoveredCategories() int {
	n := len(s.categories.Discovered())
	s.categories.Reset()
	slog.Info("discovered categories reset", slog.Int("cleared", n))
	return n
}

// LastRefreshAt returns the time of the last persisted cycle; zero when the
// store was never refreshed.
func (s *Service) LastRefreshAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefreshAt
}

// Sources returns the configured feed registry.
func (s *Service) Sources() []entity.FeedSource {
	return append([]entity.FeedSource(nil), s.cfg.Sources...)
}
