package router

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/switchboard/pkg/backend"
	"github.com/zen-systems/switchboard/pkg/config"
)

// DefaultAttemptTimeout bounds one backend attempt when the routing
// policy does not say otherwise.
const DefaultAttemptTimeout = 45 * time.Second

// Router owns the dispatch policy for one backend pool: selection,
// optional context enhancement, timeout supervision, and the fallback
// cascade. Construct one explicitly and share it across request
// goroutines; there is no package-level instance.
type Router struct {
	registry *backend.Registry
	routing  *config.Routing
	failures *FailureTracker
	selector *Selector
	enhancer *enhancer
	rand     *lockedRand
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	lastUsed string
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout overrides the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRandSource fixes the source behind specialty tie-breaking so tests
// can seed it.
func WithRandSource(src rand.Source) Option {
	return func(r *Router) {
		r.rand = newLockedRand(src)
	}
}

// New creates a Router over a registry with the given routing policy.
// A nil policy gets the built-in defaults.
func New(reg *backend.Registry, routing *config.Routing, opts ...Option) *Router {
	if routing == nil {
		routing = config.DefaultRouting()
	}

	r := &Router{
		registry: reg,
		routing:  routing,
		failures: NewFailureTracker(),
		timeout:  DefaultAttemptTimeout,
		logger:   zap.NewNop(),
	}
	if ms := routing.AttemptTimeoutMs; ms > 0 {
		r.timeout = time.Duration(ms) * time.Millisecond
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.rand == nil {
		now := uint64(time.Now().UnixNano())
		r.rand = newLockedRand(rand.NewPCG(now, now>>17))
	}

	r.selector = &Selector{Routing: routing, Failures: r.failures, Rand: r.rand.IntN}
	r.enhancer = &enhancer{cfg: routing.Augmentation, timeout: r.timeout / 3, logger: r.logger}
	return r
}

// RouteRequest drives one request through selection, optional
// enhancement, and the fallback cascade. It always returns a Response;
// backend errors never escape as error values or panics.
func (r *Router) RouteRequest(ctx context.Context, req Request) Response {
	resp, _ := r.RouteRequestWithReport(ctx, req)
	return resp
}

// RouteRequestWithReport is RouteRequest plus the per-request report:
// the routing decision and every attempt made.
func (r *Router) RouteRequestWithReport(ctx context.Context, req Request) (Response, *Report) {
	requestID := uuid.New().String()
	view := r.registry.Snapshot()

	dec := r.selector.Select(req, view, r.LastUsed())
	report := &Report{RequestID: requestID, Decision: dec}

	if len(dec.Candidates) == 0 {
		r.logger.Warn("no backends enabled", zap.String("request_id", requestID))
		return Response{Content: noBackendsContent, Model: systemModel, Error: errNoBackends}, report
	}

	r.logger.Debug("routing decision",
		zap.String("request_id", requestID),
		zap.Strings("candidates", dec.Candidates),
		zap.String("reason", dec.Reason))

	primaryText, enhanced := r.enhancer.enhance(ctx, req, dec, view)
	report.Enhanced = enhanced

	resp, attempts := r.runCascade(ctx, req, dec, view, primaryText, enhanced)
	report.Attempts = attempts

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("model", resp.Model),
		zap.Int("attempts", len(attempts)),
		zap.Bool("enhanced", resp.Enhanced),
	}
	if resp.Error != "" {
		fields = append(fields, zap.String("error", resp.Error))
	}
	r.logger.Info("request routed", fields...)

	return resp, report
}

// LastUsed returns the backend that most recently served a request
// through this router.
func (r *Router) LastUsed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUsed
}

func (r *Router) setLastUsed(name string) {
	r.mu.Lock()
	r.lastUsed = name
	r.mu.Unlock()
}

// lockedRand guards a seeded rand.Rand; selections run concurrently and
// rand.Rand is not safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(src rand.Source) *lockedRand {
	return &lockedRand{r: rand.New(src)}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
