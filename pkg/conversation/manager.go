// Package conversation keeps one chat session bound to the displayed thought.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"logossophia/pkg/ai"
	"logossophia/pkg/domain"
)

var (
	ErrUnbound      = errors.New("no thought is bound to the conversation")
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already awaiting a reply")
	// ErrStaleReply is returned when the bound thought changed while a reply was pending.
	ErrStaleReply = errors.New("reply discarded: conversation was rebound")
)

// ChatSendError reports a provider failure. The fallback turn has already
// been appended and the session stays usable.
type ChatSendError struct {
	Err error
}

func (e *ChatSendError) Error() string { return fmt.Sprintf("chat send failed: %v", e.Err) }

func (e *ChatSendError) Unwrap() error { return e.Err }

// Metrics receives one observation per completed send.
type Metrics interface {
	ObserveChatSend(outcome string)
}

// session is the provider-side context, created on the first message.
type session struct {
	system  string
	history []ai.Message
}

// Manager is Unbound until the first Bind; afterwards it is Bound to the
// thought identified by the last distinct key.
type Manager struct {
	chat    ai.ChatGenerator
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	key     string
	bound   bool
	thought domain.DailyThought
	turns   []domain.Turn
	session *session
	busy    bool
	epoch   uint64
}

// Option customizes a Manager.
type Option func(*Manager)

func WithMetrics(m Metrics) Option { return func(mg *Manager) { mg.metrics = m } }

func WithLogger(l *slog.Logger) Option {
	return func(mg *Manager) {
		if l != nil {
			mg.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option { return func(mg *Manager) { mg.now = now } }

func NewManager(chat ai.ChatGenerator, opts ...Option) *Manager {
	m := &Manager{chat: chat, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind attaches the manager to thought. It reports whether a transition
// happened; binding the key already bound is a no-op.
func (m *Manager) Bind(key string, thought domain.DailyThought) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound && m.key == key {
		return false
	}
	first := !m.bound
	m.key = key
	m.bound = true
	m.thought = thought
	m.session = nil
	m.busy = false
	m.epoch++
	m.turns = []domain.Turn{{
		Role:      domain.RoleModel,
		Text:      introTurnText(thought.Synthesis.Title, first),
		CreatedAt: m.now(),
	}}
	m.logger.Debug("conversation bound", "key", key, "title", thought.Synthesis.Title, "first", first)
	return true
}

// Unbind drops the bound thought and every turn.
func (m *Manager) Unbind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	m.bound = false
	m.thought = domain.DailyThought{}
	m.turns = nil
	m.session = nil
	m.busy = false
	m.epoch++
}

// Send appends text as a user turn, asks the provider for a reply and
// appends it. Only one send may be outstanding.
func (m *Manager) Send(ctx context.Context, text string) (domain.Turn, error) {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return domain.Turn{}, ErrUnbound
	}
	if text == "" {
		m.mu.Unlock()
		return domain.Turn{}, ErrEmptyMessage
	}
	if m.busy {
		m.mu.Unlock()
		return domain.Turn{}, ErrSendInFlight
	}
	m.busy = true
	m.turns = append(m.turns, domain.Turn{Role: domain.RoleUser, Text: text, CreatedAt: m.now()})
	if m.session == nil {
		m.session = &session{system: SystemPrompt(m.thought)}
	}
	sess := m.session
	epoch := m.epoch
	messages := make([]ai.Message, 0, len(sess.history)+1)
	messages = append(messages, sess.history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: text})
	m.mu.Unlock()

	reply, err := m.chat.Chat(ctx, sess.system, messages)

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		m.observe("stale")
		return domain.Turn{}, ErrStaleReply
	}
	m.busy = false

	if err != nil {
		m.logger.Warn("chat send failed", "key", m.key, "err", err)
		turn := m.appendModel(fallbackReply)
		m.observe("error")
		return turn, &ChatSendError{Err: err}
	}
	outcome := "ok"
	if strings.TrimSpace(reply) == "" {
		reply = silentReply
		outcome = "empty"
	}
	sess.history = append(messages, ai.Message{Role: ai.RoleModel, Content: reply})
	m.observe(outcome)
	return m.appendModel(reply), nil
}

func (m *Manager) appendModel(text string) domain.Turn {
	turn := domain.Turn{Role: domain.RoleModel, Text: text, CreatedAt: m.now()}
	m.turns = append(m.turns, turn)
	return turn
}

func (m *Manager) observe(outcome string) {
	if m.metrics != nil {
		m.metrics.ObserveChatSend(outcome)
	}
}

// Turns returns a copy of the visible turns, oldest first.
func (m *Manager) Turns() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Turn(nil), m.turns...)
}

// Busy reports whether a send is outstanding.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Bound returns the bound key, if any.
func (m *Manager) Bound() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, m.bound
}
