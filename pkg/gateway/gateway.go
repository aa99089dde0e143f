package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"logossophia/pkg/ai"
	"logossophia/pkg/domain"
)

// Request is one generation call: the date to generate for, the preferences
// to bias toward and the ledger entries to avoid.
type Request struct {
	Date        string
	Preferences domain.Preferences
	History     []domain.HistoryItem
}

// Metrics receives one observation per Generate call. outcome is "success"
// or the failure kind.
type Metrics interface {
	ObserveGeneration(outcome string, elapsed time.Duration)
}

// Limiter caps generation calls. Allow counts the attempt.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// ErrQuotaExceeded is wrapped in an unreachable GenerationError when the
// limiter refuses a call.
var ErrQuotaExceeded = errors.New("generation quota exceeded")

const quotaKey = "generation"

// BreakerConfig mirrors gobreaker.Settings with a failure-ratio trip rule.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "generation",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// Config wires a Gateway.
type Config struct {
	Provider ai.StructuredGenerator
	// MaxAttempts bounds calls per Generate for unreachable failures; <=1 disables retry.
	MaxAttempts int
	BaseBackoff time.Duration
	Breaker     BreakerConfig
	Limiter     Limiter
	Metrics     Metrics
	Logger      *slog.Logger
}

// Gateway turns generation requests into validated DailyThoughts.
type Gateway struct {
	provider    ai.StructuredGenerator
	maxAttempts int
	baseBackoff time.Duration
	breaker     *gobreaker.CircuitBreaker
	validate    *validator.Validate
	limiter     Limiter
	metrics     Metrics
	logger      *slog.Logger
	schema      *ai.Schema
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("generation provider required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = DefaultBreakerConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bc := cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        bc.Name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("generation breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Gateway{
		provider:    cfg.Provider,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		breaker:     breaker,
		validate:    newValidator(),
		limiter:     cfg.Limiter,
		metrics:     cfg.Metrics,
		logger:      logger,
		schema:      ThoughtSchema(),
	}, nil
}

// Generate asks the provider for the thought of req.Date. The returned
// thought always carries the requested date, whatever the provider echoed.
func (g *Gateway) Generate(ctx context.Context, req Request) (domain.DailyThought, error) {
	start := time.Now()
	thought, err := g.generate(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		g.logger.Warn("generation failed", "date", req.Date, "kind", outcome, "err", err)
	} else {
		g.logger.Info("generation succeeded", "date", req.Date, "title", thought.Synthesis.Title)
	}
	if g.metrics != nil {
		g.metrics.ObserveGeneration(outcome, time.Since(start))
	}
	return thought, err
}

func (g *Gateway) generate(ctx context.Context, req Request) (domain.DailyThought, error) {
	if g.limiter != nil && !g.limiter.Allow(ctx, quotaKey) {
		return domain.DailyThought{}, newError(KindUnreachable, ErrQuotaExceeded)
	}
	text, err := g.call(ctx, BuildPrompt(req))
	if err != nil {
		return domain.DailyThought{}, newError(KindUnreachable, err)
	}
	var thought domain.DailyThought
	if err := json.Unmarshal([]byte(stripFence(text)), &thought); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.DailyThought{}, newError(KindNonconforming, err)
		}
		return domain.DailyThought{}, newError(KindMalformed, err)
	}
	if err := g.validate.Struct(thought); err != nil {
		return domain.DailyThought{}, newError(KindNonconforming, describeValidation(err))
	}
	thought.Date = req.Date
	return thought, nil
}

// call runs the provider through the breaker, retrying with exponential
// backoff while attempts remain.
func (g *Gateway) call(ctx context.Context, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return g.provider.GenerateJSON(ctx, systemPrompt, userPrompt, g.schema)
		})
		if err == nil {
			return out.(string), nil
		}
		lastErr = err
		if attempt == g.maxAttempts || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		wait := g.baseBackoff << (attempt - 1)
		g.logger.Debug("retrying generation", "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return "", errors.Join(lastErr, ctx.Err())
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// stripFence removes a Markdown code fence some models wrap JSON in.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// newValidator adds "notblank", which rejects whitespace-only strings that
// "required" lets through.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Namespace())
	}
	return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
}
