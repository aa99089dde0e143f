package app

import (
	"context"

	"logossophia/pkg/cache"
	"logossophia/pkg/domain"
	"logossophia/pkg/gateway"
)

// load runs the fetch transition for the current (date, preferences, user)
// triple: cache hit, or one generation per fingerprint. A completion whose
// fingerprint is no longer current is cached but not displayed.
func (a *App) load(ctx context.Context) (State, error) {
	a.mu.Lock()
	date := a.state.Date
	prefs := a.state.Preferences.Normalize()
	userID := a.state.userID()
	fp := cache.ComputeFingerprint(date, prefs, userID)
	a.state.Fingerprint = fp
	a.mu.Unlock()

	if thought, ok := a.cache.Lookup(ctx, fp); ok {
		a.observeCache(true)
		return a.settle(fp, thought, nil)
	}
	a.observeCache(false)

	a.mu.Lock()
	if a.state.Fingerprint == fp {
		a.state.Status = domain.StatusLoading
		a.state.Thought = nil
		a.state.Error = ""
	}
	a.mu.Unlock()

	v, err, shared := a.flights.Do(fp.String(), func() (any, error) {
		return a.generate(ctx, fp, gateway.Request{Date: date, Preferences: prefs}, userID)
	})
	if shared {
		a.logger.Debug("joined in-flight generation", "fingerprint", fp.String())
	}
	if err != nil {
		return a.settle(fp, domain.DailyThought{}, err)
	}
	return a.settle(fp, v.(domain.DailyThought), nil)
}

// generate calls the gateway and records a validated result in the cache
// and, for signed-in users, the ledger. Nothing is written on failure.
func (a *App) generate(ctx context.Context, fp cache.Fingerprint, req gateway.Request, userID string) (domain.DailyThought, error) {
	if userID != "" {
		req.History = a.ledger.List(ctx, userID)
	}
	thought, err := a.gen.Generate(ctx, req)
	if err != nil {
		return domain.DailyThought{}, err
	}
	if err := a.cache.Store(ctx, fp, thought); err != nil {
		a.logger.Warn("cache store failed", "fingerprint", fp.String(), "err", err)
	}
	if userID != "" {
		if err := a.ledger.Append(ctx, userID, thought.HistoryItem(req.Date)); err != nil {
			a.logger.Warn("ledger append failed", "user", userID, "date", req.Date, "err", err)
		} else if a.metrics != nil {
			a.metrics.ObserveLedgerAppend()
		}
	}
	return thought, nil
}

// settle applies a completed load if fp is still the displayed fingerprint.
func (a *App) settle(fp cache.Fingerprint, thought domain.DailyThought, err error) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Fingerprint != fp {
		a.logger.Debug("discarding superseded load", "fingerprint", fp.String())
		return a.state.clone(), ErrSuperseded
	}
	if err != nil {
		a.state.Status = domain.StatusError
		a.state.Thought = nil
		a.state.Error = ErrorMessage
		a.conv.Unbind()
		return a.state.clone(), err
	}
	a.state.Status = domain.StatusSuccess
	a.state.Thought = &thought
	a.state.Error = ""
	a.conv.Bind(fp.String(), thought)
	return a.state.clone(), nil
}

func (a *App) observeCache(hit bool) {
	if a.metrics != nil {
		a.metrics.ObserveCache(hit)
	}
}
