package notification

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/linewalk/internal/logger"
	"github.com/tphakala/linewalk/internal/observability/metrics"
)

const (
	cleanupInterval    = time.Minute
	defaultPushTimeout = 10 * time.Second
)

// Service keeps recent toasts in an expiring cache and forwards severe ones to push providers
type Service struct {
	toasts      *cache.Cache
	duration    time.Duration
	providers   []Provider
	limiter     *PushRateLimiter
	pushTimeout time.Duration
	metrics     *metrics.HTTPMetrics
	log         logger.Logger
	wg          sync.WaitGroup
	seq         atomic.Uint64
}

// Option configures a Service
type Option func(*Service)

// WithProviders adds push providers. Providers that are disabled or fail validation are skipped.
func WithProviders(providers ...Provider) Option {
	return func(s *Service) { s.providers = append(s.providers, providers...) }
}

// WithDuration sets how long toasts stay listed
func WithDuration(d time.Duration) Option {
	return func(s *Service) { s.duration = d }
}

// WithPushTimeout bounds each push send
func WithPushTimeout(d time.Duration) Option {
	return func(s *Service) { s.pushTimeout = d }
}

// WithMetrics counts toasts and pushes
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger overrides the module logger
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a toast service
func NewService(opts ...Option) *Service {
	s := &Service{
		duration:    DefaultToastDuration,
		pushTimeout: defaultPushTimeout,
		limiter:     NewPushRateLimiter(30, 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("notification")
	}
	s.toasts = cache.New(s.duration, cleanupInterval)

	active := s.providers[:0]
	for _, p := range s.providers {
		if !p.IsEnabled() {
			continue
		}
		if err := p.ValidateConfig(); err != nil {
			s.log.Warn("push provider disabled", logger.String("provider", p.GetName()), logger.Error(err))
			continue
		}
		active = append(active, p)
	}
	s.providers = active
	return s
}

// Notify records a toast and returns it
func (s *Service) Notify(t Type, component, message string) *Toast {
	toast := NewToast(t, component, message, s.duration)
	toast.seq = s.seq.Add(1)
	s.toasts.Set(toast.ID, toast, s.duration)
	s.metrics.RecordToast(string(t))

	s.log.Debug("toast",
		logger.String("type", string(t)),
		logger.String("component", component),
		logger.String("message", message))

	if toast.Pushable() && len(s.providers) > 0 {
		s.push(toast)
	}
	return toast
}

// Success, Info, Warning and Error are shorthands for Notify
func (s *Service) Success(component, message string) *Toast {
	return s.Notify(TypeSuccess, component, message)
}

func (s *Service) Info(component, message string) *Toast {
	return s.Notify(TypeInfo, component, message)
}

func (s *Service) Warning(component, message string) *Toast {
	return s.Notify(TypeWarning, component, message)
}

func (s *Service) Error(component, message string) *Toast {
	return s.Notify(TypeError, component, message)
}

// List returns unexpired toasts in the order they were raised
func (s *Service) List() []*Toast {
	items := s.toasts.Items()
	out := make([]*Toast, 0, len(items))
	for _, item := range items {
		if t, ok := item.Object.(*Toast); ok {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b *Toast) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// Dismiss removes a toast before it expires. It reports whether the toast existed.
func (s *Service) Dismiss(id string) bool {
	if _, ok := s.toasts.Get(id); !ok {
		return false
	}
	s.toasts.Delete(id)
	return true
}

// Wait blocks until in-flight push sends finish
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) push(t *Toast) {
	if !s.limiter.Allow() {
		s.log.Warn("push rate limit reached, dropping", logger.String("toast_id", t.ID))
		s.metrics.RecordPush("rate_limited")
		return
	}

	for _, p := range s.providers {
		s.wg.Add(1)
		go func(p Provider) {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
			defer cancel()

			if err := p.Send(ctx, t); err != nil {
				s.metrics.RecordPush(metrics.StatusError)
				s.log.Warn("push send failed", logger.String("provider", p.GetName()), logger.Error(err))
				return
			}
			s.metrics.RecordPush(metrics.StatusSuccess)
		}(p)
	}
}
