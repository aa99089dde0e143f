package main

import (
	"fmt"
	"io"
	"strings"

	"logossophia/pkg/domain"
	"logossophia/services/logos/internal/app"
)

const landing = `LOGOS & SOPHIA
Where the Word meets Wisdom: scripture, the Hermetica, theurgy and the sky of the day.
`

func renderThought(w io.Writer, st app.State) {
	t := st.Thought
	if t == nil {
		return
	}
	fmt.Fprintf(w, "%s\n%s\n\n", st.Date, strings.ToUpper(t.Synthesis.Title))
	fmt.Fprintf(w, "SCRIPTURE  %s\n  %q\n\n", t.BibleVerse.Reference, t.BibleVerse.Text)
	fmt.Fprintf(w, "HERMETICA  %s\n  %s\n\n", t.HermeticWisdom.Source, t.HermeticWisdom.Belief)
	fmt.Fprintf(w, "THEURGY    %s\n  %s\n\n", t.TheurgyMagic.Concept, t.TheurgyMagic.Reflection)
	fmt.Fprintf(w, "ASTROLOGY  %s\n  %s\n\n", t.Astrology.Sign, t.Astrology.Influence)
	fmt.Fprintf(w, "SYNTHESIS\n  %s\n\nPRACTICE\n  %s\n", t.Synthesis.Content, t.Synthesis.PracticalApplication)
}

func renderTurn(w io.Writer, turn domain.Turn) {
	who := "guide"
	if turn.Role == domain.RoleUser {
		who = "you"
	}
	fmt.Fprintf(w, "[%s] %s\n", who, turn.Text)
}

func renderPreferences(w io.Writer, p domain.Preferences) {
	p = p.Normalize()
	fmt.Fprintf(w, "biblical:  %s\n", joinOrAny(p.BiblicalBooks))
	fmt.Fprintf(w, "hermetic:  %s\n", joinOrAny(p.HermeticTexts))
	fmt.Fprintf(w, "themes:    %s\n", joinOrAny(p.PhilosophicalThemes))
}

func renderUser(w io.Writer, u *domain.UserProfile) {
	if u == nil {
		fmt.Fprintln(w, "anonymous")
		return
	}
	line := u.Name
	if line == "" {
		line = u.ID
	}
	if u.Email != "" {
		line += " <" + u.Email + ">"
	}
	fmt.Fprintln(w, line)
}

func renderHistory(w io.Writer, items []domain.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "(no thoughts recorded yet)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "%s  %s (%s)\n", item.Date, item.Title, item.Reference)
	}
}

func joinOrAny(labels []string) string {
	if len(labels) == 0 {
		return "Any"
	}
	return strings.Join(labels, ", ")
}
