package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"logossophia/pkg/ai"
	"logossophia/pkg/domain"
)

const validPayload = `{
  "date": "March 21st, 2024",
  "bibleVerse": {"reference": "John 1:1", "text": "In the beginning was the Word"},
  "hermeticWisdom": {"source": "Emerald Tablet", "belief": "As above, so below"},
  "theurgyMagic": {"concept": "Henosis", "reflection": "Ascent through likeness"},
  "astrology": {"sign": "Aries", "influence": "New beginnings"},
  "synthesis": {"title": "The Word Descends", "content": "All is one", "practicalApplication": "Sit in silence"}
}`

type fakeProvider struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	prompts  []string
	schemas  []*ai.Schema
	systemed []string
}

func (f *fakeProvider) GenerateJSON(_ context.Context, systemPrompt, userPrompt string, schema *ai.Schema) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	f.schemas = append(f.schemas, schema)
	f.systemed = append(f.systemed, systemPrompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) ObserveGeneration(outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}

func newTestGateway(t *testing.T, p *fakeProvider, maxAttempts int, m Metrics) *Gateway {
	t.Helper()
	g, err := New(Config{Provider: p, MaxAttempts: maxAttempts, BaseBackoff: time.Millisecond, Metrics: m})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

func TestGenerateOverwritesEchoedDate(t *testing.T) {
	p := &fakeProvider{replies: []string{validPayload}}
	m := &recordingMetrics{}
	g := newTestGateway(t, p, 1, m)

	thought, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if thought.Date != "2024-03-21" {
		t.Fatalf("expected requested date, got %q", thought.Date)
	}
	if thought.Synthesis.Title != "The Word Descends" || thought.BibleVerse.Reference != "John 1:1" {
		t.Fatalf("unexpected thought: %+v", thought)
	}
	if p.schemas[0] == nil || len(p.schemas[0].Required) != 6 {
		t.Fatalf("expected full response schema to be requested")
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != "success" {
		t.Fatalf("unexpected metrics: %v", m.outcomes)
	}
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	p := &fakeProvider{replies: []string{"```json\n" + validPayload + "\n```"}}
	g := newTestGateway(t, p, 1, nil)
	if _, err := g.Generate(context.Background(), Request{Date: "2024-03-21"}); err != nil {
		t.Fatalf("expected fenced payload to parse: %v", err)
	}
}

func TestGenerateRejectsMissingField(t *testing.T) {
	payload := strings.Replace(validPayload, `"practicalApplication": "Sit in silence"`, `"practicalApplication": ""`, 1)
	p := &fakeProvider{replies: []string{payload}}
	m := &recordingMetrics{}
	g := newTestGateway(t, p, 3, m)

	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if KindOf(err) != KindNonconforming {
		t.Fatalf("expected nonconforming, got %q", KindOf(err))
	}
	if !strings.Contains(err.Error(), "PracticalApplication") {
		t.Fatalf("expected missing field in message, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("nonconforming responses must not be retried, calls=%d", p.calls)
	}
	if m.outcomes[0] != string(KindNonconforming) {
		t.Fatalf("unexpected metrics: %v", m.outcomes)
	}
}

func TestGenerateRejectsBlankField(t *testing.T) {
	payload := strings.Replace(validPayload, `"title": "The Word Descends"`, `"title": "   "`, 1)
	p := &fakeProvider{replies: []string{payload}}
	g := newTestGateway(t, p, 1, nil)

	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindNonconforming {
		t.Fatalf("expected whitespace-only title to be nonconforming, got %v", err)
	}
	if !strings.Contains(err.Error(), "Synthesis.Title") {
		t.Fatalf("expected blank field in message, got %v", err)
	}
}

func TestGenerateRejectsMissingSection(t *testing.T) {
	p := &fakeProvider{replies: []string{`{"date":"2024-03-21","bibleVerse":{"reference":"a","text":"b"}}`}}
	g := newTestGateway(t, p, 1, nil)
	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindNonconforming {
		t.Fatalf("expected nonconforming, got %v", err)
	}
}

func TestGenerateWrongShapeIsNonconforming(t *testing.T) {
	p := &fakeProvider{replies: []string{`{"date":"2024-03-21","bibleVerse":"John 1:1"}`}}
	g := newTestGateway(t, p, 1, nil)
	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindNonconforming {
		t.Fatalf("expected nonconforming, got %v", err)
	}
}

func TestGenerateMalformedText(t *testing.T) {
	p := &fakeProvider{replies: []string{"The stars are quiet tonight."}}
	g := newTestGateway(t, p, 1, nil)
	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestGenerateUnreachableWithoutRetry(t *testing.T) {
	p := &fakeProvider{errs: []error{errors.New("dial tcp: refused")}, replies: []string{validPayload}}
	g := newTestGateway(t, p, 1, nil)
	_, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindUnreachable {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected a single call, got %d", p.calls)
	}
}

func TestGenerateRetriesUnreachable(t *testing.T) {
	p := &fakeProvider{errs: []error{errors.New("timeout"), nil}, replies: []string{"", validPayload}}
	g := newTestGateway(t, p, 3, nil)
	thought, err := g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if p.calls != 2 || thought.Synthesis.Title == "" {
		t.Fatalf("expected two calls, got %d", p.calls)
	}
}

func TestGenerateBreakerOpensAfterFailures(t *testing.T) {
	failure := errors.New("503")
	p := &fakeProvider{errs: []error{failure, failure, failure, failure}, replies: []string{validPayload}}
	g, err := New(Config{
		Provider: p,
		Breaker: BreakerConfig{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 0.5,
			MinRequests:      2,
		},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, _ = g.Generate(context.Background(), Request{Date: "2024-03-21"})
	}
	_, err = g.Generate(context.Background(), Request{Date: "2024-03-21"})
	if KindOf(err) != KindUnreachable {
		t.Fatalf("expected unreachable from open breaker, got %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("open breaker must not call the provider, calls=%d", p.calls)
	}
}

type countingLimiter struct {
	left int
	keys []string
}

func (l *countingLimiter) Allow(_ context.Context, key string) bool {
	l.keys = append(l.keys, key)
	l.left--
	return l.left >= 0
}

func TestGenerateRespectsQuota(t *testing.T) {
	p := &fakeProvider{replies: []string{validPayload}}
	limiter := &countingLimiter{left: 1}
	g, err := New(Config{Provider: p, Limiter: limiter})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if _, err := g.Generate(context.Background(), Request{Date: "2024-03-21"}); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	_, err = g.Generate(context.Background(), Request{Date: "2024-03-22"})
	if !errors.Is(err, ErrQuotaExceeded) || KindOf(err) != KindUnreachable {
		t.Fatalf("expected quota error, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("refused generation must not reach the provider, calls=%d", p.calls)
	}
	if limiter.keys[0] != "generation" {
		t.Fatalf("unexpected quota key %q", limiter.keys[0])
	}
}

func TestBuildPromptPreferencesAndExclusions(t *testing.T) {
	prompt := BuildPrompt(Request{
		Date: "2024-03-21",
		Preferences: domain.Preferences{
			BiblicalBooks: []string{"Psalms", "Genesis"},
		},
		History: []domain.HistoryItem{
			{Date: "2024-03-20", Title: "The Hidden Fire", Reference: "Psalm 104:4"},
			{Date: "2024-03-19", Title: "Silence", Reference: "Job 4:16"},
		},
	})
	for _, want := range []string{
		"2024-03-21",
		"Biblical focus: Genesis, Psalms",
		"Hermetic focus: Any",
		"themes: Any",
		"The Hidden Fire (Psalm 104:4), Silence (Job 4:16)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptWithoutHistoryHasNoExclusions(t *testing.T) {
	prompt := BuildPrompt(Request{Date: "2024-03-21"})
	if strings.Contains(prompt, "do not repeat any of them") {
		t.Fatalf("unexpected exclusion clause:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Biblical focus: Any") {
		t.Fatalf("expected unconstrained category:\n%s", prompt)
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing provider to fail")
	}
}
