// Package router implements the ClipHaven provider router.
//
// The router is the only caller of the rate limiters, circuit breakers, usage
// tracker and providers. For each request it builds an ordered candidate list
// (preferred provider, then registry order, offline fallback last), skips
// candidates that are unavailable or whose breaker is open, throttles the rest
// through their token bucket and falls back on failure.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cliphaven/cliphaven/internal/breaker"
	"github.com/cliphaven/cliphaven/internal/providers"
	"github.com/cliphaven/cliphaven/internal/ratelimit"
	"github.com/cliphaven/cliphaven/internal/usage"
	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 60 * time.Second

// Limit overrides the token bucket for one provider.
type Limit struct {
	Capacity   int
	RefillRate float64
}

// Config configures a Router.
type Config struct {
	// Preferred is tried first unless a request names another provider.
	Preferred   string
	CallTimeout time.Duration

	// Default bucket settings and per-provider overrides.
	Limit  Limit
	Limits map[string]Limit

	Breaker []breaker.Option
}

// Router routes AI requests across the registry.
type Router struct {
	registry *providers.Registry
	usage    *usage.Tracker
	breakers *breaker.Set
	buckets  map[string]*ratelimit.Bucket
	cfg      Config
	tracer   trace.Tracer
}

var _ contracts.RouterService = (*Router)(nil)

// New creates a router over the registry. One bucket and one breaker are
// created per registered provider.
func New(reg *providers.Registry, tracker *usage.Tracker, cfg Config) *Router {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	r := &Router{
		registry: reg,
		usage:    tracker,
		breakers: breaker.NewSet(cfg.Breaker...),
		buckets:  make(map[string]*ratelimit.Bucket),
		cfg:      cfg,
		tracer:   otel.Tracer("cliphaven-router"),
	}
	for _, p := range reg.All() {
		id := p.Descriptor().ID
		l := cfg.Limit
		if o, ok := cfg.Limits[id]; ok {
			l = o
		}
		r.buckets[id] = ratelimit.New(l.Capacity, l.RefillRate)
		r.breakers.Get(id)
	}
	return r
}

// Registry returns the provider registry.
func (r *Router) Registry() *providers.Registry { return r.registry }

// Usage returns the usage tracker.
func (r *Router) Usage() *usage.Tracker { return r.usage }

// ── Candidate selection ─────────────────────────────────────

type selector struct {
	preferred  string
	capability models.Capability
	localOnly  bool
}

// candidates returns the providers to try, in order.
func (r *Router) candidates(sel selector) []contracts.Provider {
	preferred := r.cfg.Preferred
	if sel.preferred != "" {
		if _, ok := r.registry.Get(sel.preferred); ok {
			preferred = sel.preferred
		} else {
			log.Debug().Str("provider", sel.preferred).Msg("Requested provider is not registered, ignoring")
		}
	}

	var ordered []contracts.Provider
	if p, ok := r.registry.Get(preferred); ok {
		ordered = append(ordered, p)
	} else if preferred != "" {
		log.Debug().Str("provider", preferred).Msg("Preferred provider is not registered, ignoring")
	}
	for _, p := range r.registry.All() {
		if p.Descriptor().ID != preferred {
			ordered = append(ordered, p)
		}
	}

	out := ordered[:0]
	for _, p := range ordered {
		d := p.Descriptor()
		if !d.Supports(sel.capability) {
			continue
		}
		if sel.localOnly && d.Locality != models.LocalityLocal {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ── Routing loop ────────────────────────────────────────────

// callFunc performs one provider call and returns the tokens it consumed.
type callFunc func(ctx context.Context, p contracts.Provider) (int, error)

// haltError stops routing without trying further candidates.
type haltError struct {
	err     error
	failure bool // counts against the provider
}

func (h *haltError) Error() string { return h.err.Error() }
func (h *haltError) Unwrap() error { return h.err }

func (r *Router) route(ctx context.Context, op string, sel selector, call callFunc) error {
	ex := &ExhaustedError{Operation: op}
	for _, p := range r.candidates(sel) {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := p.Descriptor().ID
		err := r.attempt(ctx, op, p, call)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var halt *haltError
		if errors.As(err, &halt) {
			if !halt.failure {
				return halt.err
			}
			ex.Attempts = append(ex.Attempts, Attempt{Provider: id, Err: halt.err})
			return ex
		}

		ex.Attempts = append(ex.Attempts, Attempt{Provider: id, Err: err})
		log.Warn().
			Str("provider", id).
			Str("op", op).
			Err(err).
			Msg("Provider attempt failed, trying next")
	}

	log.Error().Str("op", op).Int("attempts", len(ex.Attempts)).Msg("All providers exhausted")
	return ex
}

func (r *Router) attempt(ctx context.Context, op string, p contracts.Provider, call callFunc) (err error) {
	id := p.Descriptor().ID
	ctx, span := r.tracer.Start(ctx, "router."+op,
		trace.WithAttributes(
			attribute.String("cliphaven.provider", id),
			attribute.String("cliphaven.locality", string(p.Descriptor().Locality)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider attempt failed")
		}
		span.End()
	}()

	// An open breaker rejects before any availability check touches the network.
	b := r.breakers.Get(id)
	if !b.CanExecute() {
		return fmt.Errorf("%s: %w", id, ErrCircuitOpen)
	}
	if !p.IsAvailable(ctx) {
		b.Abandon()
		return fmt.Errorf("%s: %w", id, providers.ErrUnavailable)
	}
	if bucket, ok := r.buckets[id]; ok {
		if err := bucket.Acquire(ctx); err != nil {
			b.Abandon()
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	tokens, err := call(callCtx, p)
	span.SetAttributes(attribute.Int64("cliphaven.latency_ms", time.Since(start).Milliseconds()))
	if err != nil {
		var halt *haltError
		switch {
		case ctx.Err() != nil:
			b.Abandon()
		case errors.As(err, &halt) && !halt.failure:
			b.Abandon()
		default:
			b.RecordFailure()
		}
		return err
	}

	b.RecordSuccess()
	if r.usage != nil {
		r.usage.RecordCall(id, tokens)
	}
	span.SetAttributes(attribute.Int("cliphaven.tokens", tokens))
	return nil
}

// finish estimates missing usage, prices the call and returns the token
// count to record.
func (r *Router) finish(u *models.TokenUsage, providerID, prompt, output string) int {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = int64(providers.EstimateTokens(prompt, output))
	}
	if r.usage != nil {
		u.EstimatedCost = float64(u.TotalTokens) / 1000 * r.usage.Price(providerID)
	}
	return int(u.TotalTokens)
}

func contextText(items []models.Item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.Content)
	}
	return b.String()
}

// ── Operations ──────────────────────────────────────────────

// Answer answers a question using the request's context items.
func (r *Router) Answer(ctx context.Context, req *models.AskRequest) (*models.Completion, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyInput
	}
	var out *models.Completion
	err := r.route(ctx, "answer", selector{preferred: req.Provider, capability: models.CapTextGeneration, localOnly: r.localOnly(req)},
		func(ctx context.Context, p contracts.Provider) (int, error) {
			c, err := p.GenerateAnswer(ctx, req.Question, req.Items)
			if err != nil {
				return 0, err
			}
			tokens := r.finish(&c.Usage, p.Descriptor().ID, req.Question+contextText(req.Items), c.Content)
			out = c
			return tokens, nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreamAnswer answers a question as a stream of chunks. Providers without
// native streaming deliver their whole answer as one chunk. Fallback to the
// next provider only happens before the first chunk reaches sink; a failure
// after that ends the request.
func (r *Router) StreamAnswer(ctx context.Context, req *models.AskRequest, sink func(models.StreamChunk) error) (*models.Completion, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyInput
	}
	var out *models.Completion
	err := r.route(ctx, "stream_answer", selector{preferred: req.Provider, capability: models.CapTextGeneration, localOnly: r.localOnly(req)},
		func(ctx context.Context, p contracts.Provider) (int, error) {
			id := p.Descriptor().ID
			emitted := false
			var sinkErr error
			forward := func(ch models.StreamChunk) error {
				ch.Provider = id
				if err := sink(ch); err != nil {
					sinkErr = err
					return err
				}
				emitted = true
				return nil
			}

			var c *models.Completion
			var err error
			if sp, ok := p.(contracts.StreamingProvider); ok && p.Descriptor().Supports(models.CapStreaming) {
				c, err = sp.StreamAnswer(ctx, req.Question, req.Items, forward)
			} else {
				c, err = p.GenerateAnswer(ctx, req.Question, req.Items)
				if err == nil {
					err = forward(models.StreamChunk{Content: c.Content})
				}
			}
			switch {
			case sinkErr != nil:
				return 0, &haltError{err: sinkErr}
			case err != nil && emitted:
				return 0, &haltError{err: err, failure: true}
			case err != nil:
				return 0, err
			}

			tokens := r.finish(&c.Usage, id, req.Question+contextText(req.Items), c.Content)
			out = c
			return tokens, nil
		})
	if err != nil {
		return nil, err
	}
	if err := sink(models.StreamChunk{Provider: out.Provider, Done: true}); err != nil {
		return out, err
	}
	return out, nil
}

// Tags generates tags for a piece of content.
func (r *Router) Tags(ctx context.Context, req *models.TagRequest) (*models.TagResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyInput
	}
	var out *models.TagResult
	err := r.route(ctx, "tags", selector{preferred: req.Provider, capability: models.CapTagging, localOnly: req.LocalOnly},
		func(ctx context.Context, p contracts.Provider) (int, error) {
			res, err := p.GenerateTags(ctx, req.Content)
			if err != nil {
				return 0, err
			}
			res.Tags = providers.ParseTags(strings.Join(res.Tags, ","))
			tokens := r.finish(&res.Usage, p.Descriptor().ID, req.Content, strings.Join(res.Tags, ","))
			out = res
			return tokens, nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeImage describes an image through a vision-capable provider.
func (r *Router) AnalyzeImage(ctx context.Context, req *models.ImageRequest) (*models.Completion, error) {
	if len(req.Image) == 0 {
		return nil, ErrEmptyInput
	}
	var out *models.Completion
	err := r.route(ctx, "analyze_image", selector{preferred: req.Provider, capability: models.CapVision},
		func(ctx context.Context, p contracts.Provider) (int, error) {
			vp, ok := p.(contracts.VisionProvider)
			if !ok {
				return 0, fmt.Errorf("%s: vision not implemented: %w", p.Descriptor().ID, providers.ErrUnavailable)
			}
			c, err := vp.AnalyzeImage(ctx, req.Image, req.MediaType)
			if err != nil {
				return 0, err
			}
			tokens := r.finish(&c.Usage, p.Descriptor().ID, "", c.Content)
			out = c
			return tokens, nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// localOnly keeps sensitive context away from cloud providers.
func (r *Router) localOnly(req *models.AskRequest) bool {
	if req.LocalOnly {
		return true
	}
	for _, it := range req.Items {
		if it.Sensitive {
			return true
		}
	}
	return false
}

// ── Introspection ───────────────────────────────────────────

// Providers returns the runtime status of every provider, terminal last.
func (r *Router) Providers(ctx context.Context) []models.ProviderStatus {
	all := r.registry.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		d := p.Descriptor()
		b := r.breakers.Get(d.ID)
		st := models.ProviderStatus{
			ProviderDescriptor: d,
			Available:          p.IsAvailable(ctx),
			CircuitState:       b.State().String(),
			Failures:           b.Failures(),
			IsPreferred:        d.ID == r.cfg.Preferred,
			IsTerminal:         r.registry.IsTerminal(d.ID),
		}
		if bucket, ok := r.buckets[d.ID]; ok {
			st.TokensLeft = bucket.Tokens()
		}
		out = append(out, st)
	}
	return out
}

// Probe refreshes one provider's availability and model list.
func (r *Router) Probe(ctx context.Context, id string) (models.ProviderTestResult, error) {
	p, ok := r.registry.Get(id)
	if !ok {
		return models.ProviderTestResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return providers.ProbeProvider(ctx, p), nil
}

// ProbeAll probes every provider concurrently.
func (r *Router) ProbeAll(ctx context.Context) []models.ProviderTestResult {
	return r.registry.ProbeAll(ctx)
}

// Breakers returns a snapshot of every circuit breaker.
func (r *Router) Breakers() []breaker.Snapshot {
	return r.breakers.Snapshot()
}
