package generator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/storyweaver/pkg/domain/interfaces"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/observability"
	"github.com/secmon-lab/storyweaver/pkg/utils/logging"
	"github.com/secmon-lab/storyweaver/pkg/utils/retry"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Second
	defaultTimeout     = 45 * time.Second
)

// Generator resolves segments, builds a citation-tagged prompt and calls the generative model
type Generator struct {
	llmClient   gollem.LLMClient
	repo        interfaces.SegmentRepository
	modelPolicy retry.Policy
	storePolicy retry.Policy
	timeout     time.Duration
	metrics     *observability.Metrics
}

type Option func(*Generator)

// WithRetry sets the attempt count and backoff for transient model failures
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(g *Generator) {
		g.modelPolicy.MaxAttempts = maxAttempts
		g.modelPolicy.BaseDelay = baseDelay
		g.modelPolicy.MaxDelay = maxDelay
	}
}

// WithStoreRetry sets the attempt count and backoff for segment store reads
func WithStoreRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(g *Generator) {
		g.storePolicy.MaxAttempts = maxAttempts
		g.storePolicy.BaseDelay = baseDelay
		g.storePolicy.MaxDelay = maxDelay
	}
}

// WithTimeout sets the hard timeout of a single model call
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func New(llmClient gollem.LLMClient, repo interfaces.SegmentRepository, opts ...Option) (*Generator, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	if repo == nil {
		return nil, goerr.New("segment repository is required")
	}

	g := &Generator{
		llmClient: llmClient,
		repo:      repo,
		modelPolicy: retry.Policy{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
			MaxDelay:    defaultMaxDelay,
		},
		storePolicy: retry.Policy{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.modelPolicy.Retryable = IsTransient
	g.storePolicy.Retryable = func(err error) bool { return errors.Is(err, model.ErrStoreUnavailable) }

	return g, nil
}

// Resolve fetches segments for ids, retrying store outages. Segments come back in original order.
func (g *Generator) Resolve(ctx context.Context, owner string, ids []model.SegmentID) ([]*model.Segment, []model.SegmentID, error) {
	type resolved struct {
		found   []*model.Segment
		missing []model.SegmentID
	}

	p := g.storePolicy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.From(ctx).Warn("segment store unavailable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}

	r, err := retry.Do(ctx, p, func(ctx context.Context, _ int) (resolved, error) {
		found, missing, err := g.repo.GetByIDs(ctx, owner, ids)
		return resolved{found: found, missing: missing}, err
	})
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to resolve segments", goerr.V(model.OwnerKey, owner))
	}

	sort.SliceStable(r.found, func(i, j int) bool {
		return r.found[i].Before(r.found[j])
	})
	return r.found, r.missing, nil
}

// Generate resolves req.SegmentIDs and returns the model's raw structured output.
// It fails with model.ErrNoValidSegments before any model call when no id resolves.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Owner == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "owner is required")
	}
	ids := model.DistinctSegmentIDs(req.SegmentIDs)
	if len(ids) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "segment ids are required")
	}

	segments, missing, err := g.Resolve(ctx, req.Owner, ids)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, goerr.Wrap(model.ErrNoValidSegments, "none of the requested segments exist",
			goerr.V(model.OwnerKey, req.Owner),
			goerr.V("requested", len(ids)))
	}
	if len(missing) > 0 {
		logging.From(ctx).Info("some requested segments do not exist",
			slog.String("task", req.Task.Name),
			slog.Int("missing", len(missing)),
			slog.Int("found", len(segments)))
	}

	raw, attempts, err := g.Complete(ctx, req.Task, BuildPrompt(req, segments))
	if err != nil {
		return nil, err
	}

	return &Result{
		Raw:      raw,
		Segments: segments,
		Missing:  missing,
		Attempts: attempts,
	}, nil
}

// Complete sends prompt to the model with the task's schema, retrying transient failures.
// Running out of attempts returns model.ErrModelExhausted.
func (g *Generator) Complete(ctx context.Context, task Task, prompt string) (string, int, error) {
	p := g.modelPolicy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.From(ctx).Warn("generative model call failed, retrying",
			slog.String("task", task.Name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err))
	}

	var attempts int
	raw, err := retry.Do(ctx, p, func(ctx context.Context, attempt int) (string, error) {
		attempts = attempt
		return g.call(ctx, task, prompt, attempt)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return "", attempts, goerr.Wrap(errors.Join(model.ErrModelExhausted, exhausted.Last),
				"generative model retries exhausted",
				goerr.V("task", task.Name),
				goerr.V(model.AttemptKey, exhausted.Attempts))
		}
		return "", attempts, err
	}
	return raw, attempts, nil
}

// call performs one model invocation under its own timeout
func (g *Generator) call(ctx context.Context, task Task, prompt string, attempt int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	raw, err := g.invoke(callCtx, task, prompt)
	elapsed := time.Since(started)

	if err != nil {
		// The per-call deadline fired while the caller is still waiting: a timeout, not a cancellation
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = goerr.Wrap(errors.Join(model.ErrModelTransient, err), "generative model call timed out",
				goerr.V("timeout", g.timeout))
		}
		outcome := "error"
		if IsTransient(err) {
			outcome = "transient"
		}
		g.metrics.ObserveModelAttempt(task.Name, outcome, elapsed)
		return "", goerr.Wrap(err, "generative model call failed",
			goerr.V("task", task.Name), goerr.V(model.AttemptKey, attempt))
	}

	g.metrics.ObserveModelAttempt(task.Name, "success", elapsed)
	return raw, nil
}

func (g *Generator) invoke(ctx context.Context, task Task, prompt string) (string, error) {
	opts := []gollem.SessionOption{
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionSystemPrompt(task.SystemPrompt),
	}
	if task.Schema != nil {
		opts = append(opts, gollem.WithSessionResponseSchema(task.Schema))
	}

	session, err := g.llmClient.NewSession(ctx, opts...)
	if err != nil {
		return "", goerr.Wrap(classify(err), "failed to create LLM session")
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(prompt)})
	if err != nil {
		return "", goerr.Wrap(classify(err), "failed to generate content from LLM")
	}

	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.Wrap(model.ErrModelTransient, "LLM returned no content")
	}
	raw := strings.TrimSpace(strings.Join(resp.Texts, ""))
	if raw == "" {
		return "", goerr.Wrap(model.ErrModelTransient, "LLM returned empty content")
	}
	return raw, nil
}
