package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"logossophia/internal/identity"
	"logossophia/internal/observability"
	"logossophia/internal/ratelimit"
	"logossophia/pkg/ai"
	"logossophia/pkg/conversation"
	"logossophia/pkg/gateway"
	"logossophia/pkg/store"
	"logossophia/services/logos/internal/app"
	"logossophia/services/logos/internal/config"
)

// runtime is everything a command needs, built from config.
type runtime struct {
	cfg     config.FileConfig
	logger  *slog.Logger
	metrics *observability.Collector
	store   *store.Store
	app     *app.App
	decoder *identity.Decoder
	closers []io.Closer
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.logger.Warn("close failed", "err", err)
		}
	}
}

func buildRuntime(ctx context.Context, cfg config.FileConfig, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewCollector("logos"),
	}

	session, err := sessionBackend(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := session.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}
	durable, err := store.NewGormBackend(cfg.DurableDSN)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init durable store: %w", err)
	}
	rt.closers = append(rt.closers, durable)
	rt.store = store.New(session, durable, logger)

	provider, err := buildProvider(cfg)
	if err != nil {
		// Commands that never generate still work; generation reports the cause.
		logger.Warn("generation provider unavailable", "provider", cfg.GenerationProvider, "err", err)
		provider = unavailableProvider{err: err}
	}
	limiter, err := quotaLimiter(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	gwCfg := gateway.Config{
		Provider:    provider,
		MaxAttempts: cfg.MaxAttempts,
		Breaker:     breakerConfig(cfg.Breaker),
		Metrics:     rt.metrics,
		Logger:      logger,
	}
	if limiter != nil {
		rt.closers = append(rt.closers, limiter)
		gwCfg.Limiter = limiter
	}
	gw, err := gateway.New(gwCfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	conv := conversation.NewManager(provider,
		conversation.WithMetrics(rt.metrics),
		conversation.WithLogger(logger),
	)

	rt.app, err = app.New(ctx, app.Config{
		Store:        rt.store,
		Generator:    gw,
		Conversation: conv,
		HistoryLimit: cfg.HistoryLimit,
		Metrics:      rt.metrics,
		Logger:       logger,
		// show and chat load explicitly; other commands only mutate inputs.
		DeferLoad:    true,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.decoder, err = identity.NewDecoder(identity.Config{
		ClientID: cfg.GoogleClientID,
		JWKSURL:  cfg.GoogleJWKSURL,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func sessionBackend(cfg config.FileConfig) (store.Backend, error) {
	switch cfg.SessionBackend {
	case "redis":
		if strings.TrimSpace(cfg.SessionID) == "" {
			return nil, errors.New("redis sessions need a session id: run `logos session new` and export LOGOS_SESSION")
		}
		backend, err := store.NewRedisBackend(store.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			Prefix:    cfg.RedisPrefix,
			SessionID: cfg.SessionID,
			TTL:       cfg.TTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("init session store: %w", err)
		}
		return backend, nil
	default:
		return store.NewMemoryBackend(), nil
	}
}

// quotaLimiter returns nil when no quota is configured. With Redis sessions
// the count is shared by every invocation against the same server.
func quotaLimiter(cfg config.FileConfig) (*ratelimit.FixedWindowLimiter, error) {
	q := cfg.GenerationQuota
	if q.Limit <= 0 {
		return nil, nil
	}
	window, _ := config.ParseDuration(q.Window)
	if cfg.SessionBackend == "redis" {
		return ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "logos:quota", q.Limit, window)
	}
	return ratelimit.NewMemoryFixedWindowLimiter(q.Limit, window)
}

func buildProvider(cfg config.FileConfig) (ai.Provider, error) {
	switch cfg.GenerationProvider {
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.APIKey(),
			ai.WithGeminiBaseURL(cfg.GenerationBaseURL),
			ai.WithGeminiTimeout(cfg.Timeout()),
		)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel, cfg.ChatModel), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.GenerationBaseURL, cfg.Timeout()), cfg.GenerationModel), nil
	case "openai-compat":
		return ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.APIKey(), cfg.GenerationModel, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.GenerationProvider)
	}
}

func breakerConfig(bc config.BreakerConfig) gateway.BreakerConfig {
	out := gateway.DefaultBreakerConfig()
	if bc.MaxRequests > 0 {
		out.MaxRequests = bc.MaxRequests
	}
	if d, _ := config.ParseDuration(bc.Interval); d > 0 {
		out.Interval = d
	}
	if d, _ := config.ParseDuration(bc.Timeout); d > 0 {
		out.Timeout = d
	}
	if bc.FailureThreshold > 0 {
		out.FailureThreshold = bc.FailureThreshold
	}
	if bc.MinRequests > 0 {
		out.MinRequests = bc.MinRequests
	}
	return out
}

// unavailableProvider stands in when the configured provider cannot be built.
type unavailableProvider struct {
	err error
}

func (p unavailableProvider) GenerateJSON(context.Context, string, string, *ai.Schema) (string, error) {
	return "", p.err
}

func (p unavailableProvider) Chat(context.Context, string, []ai.Message) (string, error) {
	return "", p.err
}
