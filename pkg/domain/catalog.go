package domain

import (
	"fmt"
	"slices"
)

// Selectable preference labels offered by the personalization form.
var (
	BiblicalOptions = []string{"Gospel of John", "Psalms", "Proverbs", "Revelation", "Genesis", "Ecclesiastes", "Job"}
	HermeticOptions = []string{"Corpus Hermeticum", "The Kybalion", "Emerald Tablet", "Asclepius", "Pistis Sophia"}
	ThemeOptions    = []string{"Alchemy", "Neoplatonism", "Kabbalah", "Gnosticism", "Sacred Geometry", "Planetary Magic"}
)

// ValidatePreferences rejects labels that are not in the catalog.
func ValidatePreferences(p Preferences) error {
	p = p.Normalize()
	checks := []struct {
		category string
		values   []string
		allowed  []string
	}{
		{"biblical", p.BiblicalBooks, BiblicalOptions},
		{"hermetic", p.HermeticTexts, HermeticOptions},
		{"theme", p.PhilosophicalThemes, ThemeOptions},
	}
	for _, c := range checks {
		for _, v := range c.values {
			if !slices.Contains(c.allowed, v) {
				return fmt.Errorf("unknown %s option %q", c.category, v)
			}
		}
	}
	return nil
}
