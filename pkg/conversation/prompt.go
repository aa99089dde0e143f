package conversation

import (
	"fmt"
	"strings"

	"logossophia/pkg/domain"
)

const (
	fallbackReply = "A shadow has crossed the connection. Please try again."
	silentReply   = "The oracle is momentarily silent. Please ask again."
)

func introTurnText(title string, first bool) string {
	if first {
		return fmt.Sprintf("Greetings, seeker. I am the Guide of the Logos. What would you explore in %q today?", title)
	}
	return fmt.Sprintf("The wisdom has shifted. We now contemplate %q. Where shall we begin?", title)
}

// SystemPrompt frames a chat session around one thought.
func SystemPrompt(t domain.DailyThought) string {
	var b strings.Builder
	b.WriteString("You are the Guide of the Logos, a learned and gentle mentor in Biblical theology, ")
	b.WriteString("Hermetic philosophy, Neoplatonic theurgy and astrology.\n")
	fmt.Fprintf(&b, "The seeker is studying the wisdom given for %s:\n", t.Date)
	fmt.Fprintf(&b, "- Title: %s\n", t.Synthesis.Title)
	fmt.Fprintf(&b, "- Scripture: %s, %q\n", t.BibleVerse.Reference, t.BibleVerse.Text)
	fmt.Fprintf(&b, "- Hermetic: %s, %q\n", t.HermeticWisdom.Source, t.HermeticWisdom.Belief)
	fmt.Fprintf(&b, "- Theurgy: %s, %q\n", t.TheurgyMagic.Concept, t.TheurgyMagic.Reflection)
	fmt.Fprintf(&b, "- Astrology: %s, %q\n", t.Astrology.Sign, t.Astrology.Influence)
	fmt.Fprintf(&b, "- Synthesis: %s\n", t.Synthesis.Content)
	b.WriteString("Help the seeker see how these threads connect, including how the sky of that day bears on the path. ")
	b.WriteString("Be brief but deep, kind but sure, in slightly elevated language. ")
	b.WriteString("If the seeker strays from this path, lead them gently back to it.")
	return b.String()
}
