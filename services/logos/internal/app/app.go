package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"logossophia/internal/identity"
	"logossophia/pkg/cache"
	"logossophia/pkg/conversation"
	"logossophia/pkg/domain"
	"logossophia/pkg/gateway"
	"logossophia/pkg/history"
	"logossophia/pkg/store"
)

// Keys of the records the app persists itself.
const (
	KeyUser        = "logos_user"
	KeyPreferences = "logos_preferences"
	KeyEntered     = "logos_entered"
)

// Generator produces a validated thought for a request.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (domain.DailyThought, error)
}

// Metrics receives cache and ledger observations.
type Metrics interface {
	ObserveCache(hit bool)
	ObserveLedgerAppend()
}

// Config holds runtime dependencies for the application core.
type Config struct {
	Store        *store.Store
	Generator    Generator
	Conversation *conversation.Manager
	HistoryLimit int
	Metrics      Metrics
	Logger       *slog.Logger
	// Today returns the date selected at startup.
	Today func() string
	// DeferLoad makes SetUser, Logout and SavePreferences persist the new
	// input without loading; the displayed thought is cleared and the next
	// Refresh loads. For callers that display content separately.
	DeferLoad bool
}

// State is a snapshot of what the client displays.
type State struct {
	Date        string
	Preferences domain.Preferences
	User        *domain.UserProfile
	Status      domain.LoadingStatus
	Thought     *domain.DailyThought
	Fingerprint cache.Fingerprint
	Error       string
	Entered     bool
}

func (s State) userID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

func (s State) clone() State {
	out := s
	out.Preferences = s.Preferences.Normalize()
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Thought != nil {
		t := *s.Thought
		out.Thought = &t
	}
	return out
}

// App owns the client state. Every mutation goes through an intent method.
type App struct {
	store     *store.Store
	cache     *cache.Cache
	ledger    *history.Ledger
	gen       Generator
	conv      *conversation.Manager
	metrics   Metrics
	logger    *slog.Logger
	flights   singleflight.Group
	deferLoad bool

	mu    sync.Mutex
	state State
}

// New restores the persisted user, preferences and entered marker.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conv := cfg.Conversation
	if conv == nil {
		return nil, fmt.Errorf("conversation manager required")
	}
	today := cfg.Today
	if today == nil {
		today = domain.Today
	}

	a := &App{
		store:     cfg.Store,
		cache:     cache.New(cfg.Store),
		ledger:    history.NewLedger(cfg.Store, cfg.HistoryLimit),
		gen:       cfg.Generator,
		conv:      conv,
		metrics:   cfg.Metrics,
		logger:    logger,
		deferLoad: cfg.DeferLoad,
	}
	a.state = State{Date: today(), Status: domain.StatusIdle}
	if user, ok := store.GetJSON[domain.UserProfile](ctx, cfg.Store, store.TierDurable, KeyUser); ok && user.ID != "" {
		a.state.User = &user
	}
	if prefs, ok := store.GetJSON[domain.Preferences](ctx, cfg.Store, store.TierDurable, KeyPreferences); ok {
		a.state.Preferences = prefs.Normalize()
	} else {
		a.state.Preferences = domain.Preferences{}.Normalize()
	}
	_, a.state.Entered = cfg.Store.Get(ctx, store.TierSession, KeyEntered)
	return a, nil
}

// State returns a copy of the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.clone()
}

// Conversation returns the chat manager bound to the displayed thought.
func (a *App) Conversation() *conversation.Manager {
	return a.conv
}

// Refresh loads the thought for the current inputs.
func (a *App) Refresh(ctx context.Context) (State, error) {
	return a.load(ctx)
}

// Retry re-issues the request for the current inputs after a failure.
func (a *App) Retry(ctx context.Context) (State, error) {
	return a.load(ctx)
}

// SelectDate switches the displayed date.
func (a *App) SelectDate(ctx context.Context, date string) (State, error) {
	date, err := domain.ParseDate(date)
	if err != nil {
		return a.State(), err
	}
	a.mu.Lock()
	a.state.Date = date
	a.mu.Unlock()
	return a.load(ctx)
}

// SetUser signs a user in and persists the profile durably.
func (a *App) SetUser(ctx context.Context, profile domain.UserProfile) (State, error) {
	if profile.ID == "" {
		return a.State(), fmt.Errorf("user profile requires an id")
	}
	if err := store.SetJSON(ctx, a.store, store.TierDurable, KeyUser, profile); err != nil {
		a.logger.Warn("persist user failed", "err", err)
	}
	a.mu.Lock()
	a.state.User = &profile
	a.mu.Unlock()
	a.logger.Info("user signed in", "user", profile.ID)
	return a.inputsChanged(ctx)
}

// Logout forgets the signed-in user. Their ledger stays in the durable tier.
func (a *App) Logout(ctx context.Context) (State, error) {
	if err := a.store.Remove(ctx, store.TierDurable, KeyUser); err != nil {
		a.logger.Warn("remove user failed", "err", err)
	}
	a.mu.Lock()
	a.state.User = nil
	a.mu.Unlock()
	a.logger.Info("user signed out")
	return a.inputsChanged(ctx)
}

// SavePreferences replaces the preferences and reloads unless DeferLoad is set.
func (a *App) SavePreferences(ctx context.Context, prefs domain.Preferences) (State, error) {
	prefs = prefs.Normalize()
	if err := store.SetJSON(ctx, a.store, store.TierDurable, KeyPreferences, prefs); err != nil {
		a.logger.Warn("persist preferences failed", "err", err)
	}
	a.mu.Lock()
	a.state.Preferences = prefs
	a.mu.Unlock()
	return a.inputsChanged(ctx)
}

// inputsChanged reloads after an input intent, or with DeferLoad clears
// the displayed thought so it cannot be mistaken for the new inputs'.
func (a *App) inputsChanged(ctx context.Context) (State, error) {
	if !a.deferLoad {
		return a.load(ctx)
	}
	a.conv.Unbind()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Fingerprint = ""
	a.state.Status = domain.StatusIdle
	a.state.Thought = nil
	a.state.Error = ""
	return a.state.clone(), nil
}

// EnterApp records that the landing page was passed for this session.
func (a *App) EnterApp(ctx context.Context) error {
	if err := a.store.Set(ctx, store.TierSession, KeyEntered, "true"); err != nil {
		return fmt.Errorf("mark entered: %w", err)
	}
	a.mu.Lock()
	a.state.Entered = true
	a.mu.Unlock()
	return nil
}

// Entered reports whether EnterApp ran in this session.
func (a *App) Entered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Entered
}

// EndSession clears the session tier: cached thoughts and the entered marker.
func (a *App) EndSession(ctx context.Context) error {
	if err := a.store.ClearTier(ctx, store.TierSession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.conv.Unbind()
	a.mu.Lock()
	a.state.Entered = false
	a.state.Status = domain.StatusIdle
	a.state.Thought = nil
	a.state.Error = ""
	a.mu.Unlock()
	return nil
}

// History lists the signed-in user's ledger, most recent first.
func (a *App) History(ctx context.Context) ([]domain.HistoryItem, error) {
	a.mu.Lock()
	userID := a.state.userID()
	a.mu.Unlock()
	if userID == "" {
		return nil, ErrNoUser
	}
	return a.ledger.List(ctx, userID), nil
}

// WatchIdentity applies identity events until ctx ends or events closes.
func (a *App) WatchIdentity(ctx context.Context, events <-chan identity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var err error
			switch ev.Kind {
			case identity.SignIn:
				if ev.Profile == nil {
					a.logger.Warn("sign-in event without profile")
					continue
				}
				_, err = a.SetUser(ctx, *ev.Profile)
			case identity.SignOut:
				_, err = a.Logout(ctx)
			default:
				a.logger.Warn("unknown identity event", "kind", ev.Kind)
				continue
			}
			if err != nil {
				a.logger.Warn("identity event load failed", "kind", ev.Kind, "err", err)
			}
		}
	}
}
