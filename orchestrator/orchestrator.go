// Package orchestrator routes model calls across a ranked list of backends
// with per-backend retries, automatic failover and background health
// checks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tcode/model"
	"tcode/storage"
)

var (
	// ErrNoProviders is returned when no backend could be initialised.
	ErrNoProviders = errors.New("no model providers available")
	// ErrUnknownProvider is returned by SwitchProvider for a name outside
	// the available set.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ExhaustedError reports that every available backend failed.
type ExhaustedError struct {
	Attempted []string
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed (tried %s): %v", strings.Join(e.Attempted, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// AuditLog persists call attempts and failover events. *storage.DB
// implements it.
type AuditLog interface {
	RecordCall(ctx context.Context, rec storage.CallRecord) error
	RecordFailover(ctx context.Context, ev storage.FailoverEvent) error
}

// entry is one initialised backend. Only the health fields change after
// Initialize, and only under Orchestrator.mu.
type entry struct {
	name      string
	rank      int
	provider  model.Provider
	healthy   bool
	lastCheck time.Time
}

// Status is a point-in-time view of one backend.
type Status struct {
	Name            string
	Rank            int
	Model           string
	Healthy         bool
	Current         bool
	LastHealthCheck time.Time
}

// Orchestrator owns the ranked backends and the current selection.
type Orchestrator struct {
	mu      sync.RWMutex
	entries []*entry
	current string
	pinned  string

	policy       RetryPolicy
	audit        AuditLog
	logger       *zap.Logger
	checkTimeout time.Duration

	scheduler *cron.Cron

	// replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an orchestrator. audit may be nil to disable the call log.
func New(policy RetryPolicy, audit AuditLog, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		policy:       policy,
		audit:        audit,
		logger:       logger.Named("orchestrator"),
		checkTimeout: 10 * time.Second,
		sleep:        sleepContext,
		now:          time.Now,
	}
}

// Initialize constructs and initialises each named backend in rank order.
// Backends that fail to build or initialise are logged and left out. It
// returns ErrNoProviders when none succeed. The first available backend
// becomes current.
func (o *Orchestrator) Initialize(ctx context.Context, ranked []string, build func(name string) (model.Provider, error)) error {
	var entries []*entry
	seen := make(map[string]bool)

	for _, name := range ranked {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, err := build(name)
		if err != nil {
			o.logger.Warn("provider unavailable", zap.String("provider", name), zap.Error(err))
			continue
		}
		if err := p.Initialize(ctx); err != nil {
			o.logger.Warn("provider failed to initialize", zap.String("provider", name), zap.Error(err))
			continue
		}

		entries = append(entries, &entry{
			name:      name,
			rank:      len(entries),
			provider:  p,
			healthy:   true,
			lastCheck: o.now(),
		})
		o.logger.Info("provider ready",
			zap.String("provider", name),
			zap.String("model", p.GetModel()),
			zap.Int("rank", len(entries)-1))
	}

	if len(entries) == 0 {
		return fmt.Errorf("%w (tried %s)", ErrNoProviders, strings.Join(ranked, ", "))
	}

	o.mu.Lock()
	o.entries = entries
	o.current = entries[0].name
	o.mu.Unlock()
	return nil
}

// Current returns the name of the backend that served the last request,
// or the primary before any request.
func (o *Orchestrator) Current() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// CurrentModel returns the model of the current backend.
func (o *Orchestrator) CurrentModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, e := range o.entries {
		if e.name == o.current {
			return e.provider.GetModel()
		}
	}
	return ""
}

// SwitchProvider makes name the current backend. It is tried first on
// every later request until the next switch.
func (o *Orchestrator) SwitchProvider(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range o.entries {
		if e.name == name {
			if o.current != name {
				o.logger.Info("provider switched manually",
					zap.String("from", o.current), zap.String("to", name))
			}
			o.current = name
			o.pinned = name
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}

// Providers returns the status of every available backend in rank order.
func (o *Orchestrator) Providers() []Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Status, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, Status{
			Name:            e.name,
			Rank:            e.rank,
			Model:           e.provider.GetModel(),
			Healthy:         e.healthy,
			Current:         e.name == o.current,
			LastHealthCheck: e.lastCheck,
		})
	}
	return out
}

// rotation returns the backends in attempt order: a manually selected
// backend first, then healthy ones by rank, then unhealthy ones by rank.
func (o *Orchestrator) rotation() []*entry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	order := make([]*entry, 0, len(o.entries))
	for _, e := range o.entries {
		if e.name == o.pinned {
			order = append(order, e)
		}
	}
	for _, e := range o.entries {
		if e.healthy && e.name != o.pinned {
			order = append(order, e)
		}
	}
	for _, e := range o.entries {
		if !e.healthy && e.name != o.pinned {
			order = append(order, e)
		}
	}
	return order
}

// SendMessage sends messages to the first backend that succeeds. Each
// backend gets up to MaxRetries sequential attempts with exponential
// backoff. Non-retryable failures move on to the next backend at once.
// When every backend fails the result is an *ExhaustedError.
func (o *Orchestrator) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	order := o.rotation()
	if len(order) == 0 {
		return nil, ErrNoProviders
	}

	previous := o.Current()
	var (
		attempted []string
		lastErr   error
	)

	for _, e := range order {
		attempted = append(attempted, e.name)

		resp, err := o.tryBackend(ctx, e, messages, tools, opts)
		if err == nil {
			o.promote(ctx, e.name, previous, lastErr, messages)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		o.logger.Warn("provider exhausted, failing over",
			zap.String("provider", e.name), zap.Error(err))
	}

	if len(attempted) > 1 {
		o.recordFailover(ctx, storage.FailoverEvent{
			From:        previous,
			To:          attempted[len(attempted)-1],
			Reason:      lastErr.Error(),
			ContextSize: contextSize(messages),
			Success:     false,
		})
	}

	return nil, &ExhaustedError{Attempted: attempted, Last: lastErr}
}

// tryBackend runs the retry loop against one backend.
func (o *Orchestrator) tryBackend(ctx context.Context, e *entry, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	attempts := o.policy.attempts()
	var last error

	for attempt := 0; attempt < attempts; attempt++ {
		start := o.now()
		resp, err := e.provider.Send(ctx, messages, tools, opts)
		latency := o.now().Sub(start)

		failure := attemptError(e.name, resp, err)
		o.recordCall(ctx, e.name, resp, failure, latency)

		if failure == nil {
			if resp.Provider == "" {
				resp.Provider = e.name
			}
			return resp, nil
		}
		last = failure

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !model.IsRetryable(failure) {
			o.logger.Debug("non-retryable failure",
				zap.String("provider", e.name), zap.Int("attempt", attempt+1), zap.Error(failure))
			break
		}
		if attempt == attempts-1 {
			break
		}

		delay := o.policy.Delay(attempt)
		o.logger.Debug("retrying provider",
			zap.String("provider", e.name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(failure))
		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, last
}

// attemptError folds the two failure shapes of Send into one error.
func attemptError(name string, resp *model.Response, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("%s: %w", name, err)
	case resp == nil:
		return fmt.Errorf("%s: empty response", name)
	case !resp.Success && resp.Error != nil:
		return fmt.Errorf("%s: %w", name, resp.Error)
	case !resp.Success:
		return fmt.Errorf("%s: request failed", name)
	default:
		return nil
	}
}

func (o *Orchestrator) recordCall(ctx context.Context, name string, resp *model.Response, failure error, measured time.Duration) {
	if o.audit == nil {
		return
	}

	rec := storage.CallRecord{
		Provider:  name,
		Success:   failure == nil,
		LatencyMS: measured.Milliseconds(),
		CreatedAt: o.now(),
	}
	if resp != nil {
		rec.RequestID = resp.Metadata.RequestID
		rec.TokensUsed = resp.Usage.TotalTokens
		if resp.Metadata.Latency > 0 {
			rec.LatencyMS = resp.Metadata.Latency.Milliseconds()
		}
	}
	if failure != nil {
		rec.ErrorMessage = failure.Error()
		var pe *model.ProviderError
		if errors.As(failure, &pe) {
			rec.StatusCode = pe.StatusCode
		}
	}

	if err := o.audit.RecordCall(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("failed to record provider call", zap.String("provider", name), zap.Error(err))
	}
}

func (o *Orchestrator) recordFailover(ctx context.Context, ev storage.FailoverEvent) {
	ev.CreatedAt = o.now()
	if ev.Success {
		o.logger.Info("provider failover",
			zap.String("from", ev.From),
			zap.String("to", ev.To),
			zap.String("reason", ev.Reason),
			zap.Int("context_bytes", ev.ContextSize))
	}
	if o.audit == nil {
		return
	}
	if err := o.audit.RecordFailover(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn("failed to record failover", zap.Error(err))
	}
}

// promote marks name as current and records a failover when it replaces
// a different backend.
func (o *Orchestrator) promote(ctx context.Context, name, previous string, cause error, messages []model.Message) {
	o.mu.Lock()
	o.current = name
	o.mu.Unlock()

	if name == previous {
		return
	}

	reason := "selected by rotation order"
	if cause != nil {
		reason = cause.Error()
	}
	o.recordFailover(ctx, storage.FailoverEvent{
		From:        previous,
		To:          name,
		Reason:      reason,
		ContextSize: contextSize(messages),
		Success:     true,
	})
}

// contextSize approximates the request size in bytes.
func contextSize(messages []model.Message) int {
	size := 0
	for _, m := range messages {
		size += len(m.Content)
	}
	return size
}
