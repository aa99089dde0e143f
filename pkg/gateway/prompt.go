package gateway

import (
	"fmt"
	"strings"

	"logossophia/pkg/history"
)

const systemPrompt = "You write one scholarly, contemplative daily reflection that weaves scripture, " +
	"Hermetic philosophy, theurgy and astrology into a single coherent teaching. " +
	"Answer only with JSON matching the requested schema."

func anyIfEmpty(labels []string) string {
	if len(labels) == 0 {
		return "Any"
	}
	return strings.Join(labels, ", ")
}

// BuildPrompt renders the user prompt for a generation request.
func BuildPrompt(req Request) string {
	prefs := req.Preferences.Normalize()
	var b strings.Builder
	fmt.Fprintf(&b, "The calendar date is %s. Compose the thought of the day for exactly this date, joining four realms:\n", req.Date)
	b.WriteString("1. A passage of Biblical scripture, Old or New Testament, with its reference.\n")
	b.WriteString("2. A teaching from Hermetic literature such as the Corpus Hermeticum, the Kybalion or the Emerald Tablet.\n")
	b.WriteString("3. A concept from theurgy or ritual magic (Neoplatonic, Renaissance or ceremonial) with a reflection on it.\n")
	fmt.Fprintf(&b, "4. The actual astrological weather for %s: the real sun sign and genuine planetary transits of that day.\n", req.Date)
	b.WriteString("Close with a synthesis that has a title, a body and one practical application.\n\n")

	b.WriteString("Seeker preferences (favor these where given):\n")
	fmt.Fprintf(&b, "- Biblical focus: %s\n", anyIfEmpty(prefs.BiblicalBooks))
	fmt.Fprintf(&b, "- Hermetic focus: %s\n", anyIfEmpty(prefs.HermeticTexts))
	fmt.Fprintf(&b, "- Philosophical and theurgic themes: %s\n", anyIfEmpty(prefs.PhilosophicalThemes))

	if topics := history.ExcludeTopics(req.History); len(topics) > 0 {
		fmt.Fprintf(&b, "\nThe seeker has already received these; do not repeat any of them: %s.\n", strings.Join(topics, ", "))
	}
	b.WriteString("\nKeep the tone learned yet mystical and do not repeat a theme within a calendar year.")
	return b.String()
}
