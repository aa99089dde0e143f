package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type LoadingStatus string

const (
	StatusIdle    LoadingStatus = "idle"
	StatusLoading LoadingStatus = "loading"
	StatusSuccess LoadingStatus = "success"
	StatusError   LoadingStatus = "error"
)

type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleModel TurnRole = "model"
)

// Preferences holds the user's focus selections. Each category is a set of
// labels; an empty category means "unconstrained".
type Preferences struct {
	BiblicalBooks       []string `json:"biblicalBooks"`
	HermeticTexts       []string `json:"hermeticTexts"`
	PhilosophicalThemes []string `json:"philosophicalThemes"`
}

// Normalize returns a copy with every category trimmed, deduplicated and sorted.
func (p Preferences) Normalize() Preferences {
	return Preferences{
		BiblicalBooks:       normalizeLabels(p.BiblicalBooks),
		HermeticTexts:       normalizeLabels(p.HermeticTexts),
		PhilosophicalThemes: normalizeLabels(p.PhilosophicalThemes),
	}
}

// IsEmpty reports whether no category has a selection.
func (p Preferences) IsEmpty() bool {
	n := p.Normalize()
	return len(n.BiblicalBooks) == 0 && len(n.HermeticTexts) == 0 && len(n.PhilosophicalThemes) == 0
}

func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, label := range in {
		label = strings.TrimSpace(label)
		if label == "" || slices.Contains(out, label) {
			continue
		}
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

type UserProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

type HistoryItem struct {
	Date      string `json:"date"`
	Title     string `json:"title"`
	Reference string `json:"reference"`
}

type BibleVerse struct {
	Reference string `json:"reference" validate:"required,notblank"`
	Text      string `json:"text" validate:"required,notblank"`
}

type HermeticWisdom struct {
	Source string `json:"source" validate:"required,notblank"`
	Belief string `json:"belief" validate:"required,notblank"`
}

type TheurgyMagic struct {
	Concept    string `json:"concept" validate:"required,notblank"`
	Reflection string `json:"reflection" validate:"required,notblank"`
}

type Astrology struct {
	Sign      string `json:"sign" validate:"required,notblank"`
	Influence string `json:"influence" validate:"required,notblank"`
}

type Synthesis struct {
	Title                string `json:"title" validate:"required,notblank"`
	Content              string `json:"content" validate:"required,notblank"`
	PracticalApplication string `json:"practicalApplication" validate:"required,notblank"`
}

// DailyThought is one generated thought. It is never mutated once cached.
type DailyThought struct {
	Date           string         `json:"date" validate:"required,notblank"`
	BibleVerse     BibleVerse     `json:"bibleVerse"`
	HermeticWisdom HermeticWisdom `json:"hermeticWisdom"`
	TheurgyMagic   TheurgyMagic   `json:"theurgyMagic"`
	Astrology      Astrology      `json:"astrology"`
	Synthesis      Synthesis      `json:"synthesis"`
}

// HistoryItem summarizes the thought for the anti-repetition ledger.
func (t DailyThought) HistoryItem(date string) HistoryItem {
	return HistoryItem{
		Date:      date,
		Title:     t.Synthesis.Title,
		Reference: t.BibleVerse.Reference,
	}
}

type Turn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// DateLayout is the calendar date format used for requests and keys.
const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD calendar date and returns it canonicalized.
func ParseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t.Format(DateLayout), nil
}

// Today returns the current UTC calendar date.
func Today() string {
	return time.Now().UTC().Format(DateLayout)
}
