package notify

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/resilience/circuitbreaker"
)

const (
	DefaultMaxConcurrent = 10
	DefaultMaxPerCycle   = 10

	workerPoolTimeout   = 5 * time.Second  // wait for a free worker slot
	notificationTimeout = 30 * time.Second // one channel send, retries included
)

// Config bounds dispatching. Zero values take the defaults.
type Config struct {
	// MaxConcurrent caps in-flight channel sends.
	MaxConcurrent int

	// MaxPerCycle caps the articles announced per refresh cycle. The first
	// cycle against an empty store inserts every feed item at once.
	MaxPerCycle int
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string
	Enabled            bool
	CircuitBreakerOpen bool
}

// Service dispatches new-article notifications to every enabled channel.
type Service struct {
	channels    []Channel
	maxPerCycle int
	workerPool  chan struct{}
	breakers    *circuitbreaker.Registry

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewService creates a notification service over channels.
func NewService(channels []Channel, cfg Config) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = DefaultMaxPerCycle
	}
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	s := &Service{
		channels:    channels,
		maxPerCycle: cfg.MaxPerCycle,
		workerPool:  make(chan struct{}, cfg.MaxConcurrent),
		breakers: circuitbreaker.NewRegistry(func(name string) circuitbreaker.Config {
			return circuitbreaker.NotifyChannelConfig("notify:" + name)
		}),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	SetChannelsEnabled(s.EnabledChannels())
	return s
}

// EnabledChannels counts the channels that receive notifications.
func (s *Service) EnabledChannels() int {
	n := 0
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			n++
		}
	}
	return n
}

// NotifyNewArticles announces up to MaxPerCycle of articles, in the given
// order, on every enabled channel. It returns immediately with the number of
// articles dispatched; sends run in the background and failures are only
// logged and counted.
func (s *Service) NotifyNewArticles(ctx context.Context, articles []entity.Article) int {
	enabled := s.EnabledChannels()
	if enabled == 0 || len(articles) == 0 {
		return 0
	}

	dispatchID, ok := ctx.Value(dispatchIDKey).(string)
	if !ok || dispatchID == "" {
		dispatchID = uuid.New().String()
	}

	if skipped := len(articles) - s.maxPerCycle; skipped > 0 {
		slog.Info("notification cap reached, skipping older articles",
			slog.String("dispatch_id", dispatchID),
			slog.Int("new_articles", len(articles)),
			slog.Int("skipped", skipped))
		RecordDroppedN("all", "cycle_cap", skipped)
		articles = articles[:s.maxPerCycle]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		RecordDroppedN("all", "shutdown", len(articles))
		return 0
	}

	slog.Info("dispatching article notifications",
		slog.String("dispatch_id", dispatchID),
		slog.Int("articles", len(articles)),
		slog.Int("enabled_channels", enabled))

	for i := range articles {
		article := articles[i].Clone()
		for _, ch := range s.channels {
			if !ch.IsEnabled() {
				continue
			}
			s.wg.Add(1)
			go s.notifyChannel(dispatchID, ch, &article)
		}
	}
	return len(articles)
}

// notifyChannel sends one article to one channel.
func (s *Service) notifyChannel(dispatchID string, channel Channel, article *entity.Article) {
	defer s.wg.Done()

	IncrementActiveGoroutines()
	defer DecrementActiveGoroutines()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in notification channel",
				slog.String("dispatch_id", dispatchID),
				slog.String("channel", channel.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-time.After(workerPoolTimeout):
		slog.Warn("notification dropped: worker pool full",
			slog.String("dispatch_id", dispatchID),
			slog.String("channel", channel.Name()))
		RecordDropped(channel.Name(), "pool_full")
		return
	case <-s.shutdownCtx.Done():
		RecordDropped(channel.Name(), "shutdown")
		return
	}

	ctx, cancel := context.WithTimeout(s.shutdownCtx, notificationTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, dispatchIDKey, dispatchID)

	start := time.Now()
	RecordDispatch(channel.Name())

	_, err := s.breakers.Get(channel.Name()).Execute(func() (interface{}, error) {
		return nil, channel.Send(ctx, article)
	})
	duration := time.Since(start)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		slog.Warn("channel temporarily disabled by circuit breaker",
			slog.String("dispatch_id", dispatchID),
			slog.String("channel", channel.Name()))
		RecordDropped(channel.Name(), "circuit_open")
		return
	}
	if err != nil {
		RecordFailure(channel.Name(), duration)
		slog.Warn("channel notification failed",
			slog.String("dispatch_id", dispatchID),
			slog.String("channel", channel.Name()),
			slog.String("article_id", article.ID),
			slog.String("link", article.Link),
			slog.Duration("send_duration", duration),
			slog.Any("error", err))
		return
	}

	RecordSuccess(channel.Name(), duration)
	slog.Info("channel notification sent",
		slog.String("dispatch_id", dispatchID),
		slog.String("channel", channel.Name()),
		slog.String("article_id", article.ID),
		slog.String("title", article.Title),
		slog.Duration("send_duration", duration))
}

// ChannelHealth returns the breaker state of every channel.
func (s *Service) ChannelHealth() []ChannelHealthStatus {
	out := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: s.breakers.Get(ch.Name()).IsOpen(),
		})
	}
	return out
}

// Shutdown stops accepting notifications and waits for in-flight sends.
// When ctx expires first the remaining sends are canceled without waiting
// for them and ctx.Err() is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.shutdownCancel()
		slog.Info("notification service shutdown complete")
		return nil
	case <-ctx.Done():
		s.shutdownCancel()
		slog.Warn("notification service shutdown timeout, in-flight sends canceled")
		return ctx.Err()
	}
}

type contextKey string

const dispatchIDKey contextKey = "dispatch_id"

// WithDispatchID tags ctx so the notifications of one cycle share an id.
func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dispatchIDKey, id)
}
