package gateway

import "logossophia/pkg/ai"

func pair(first, second string, descriptions ...string) *ai.Schema {
	s := &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			first:  {Type: ai.TypeString},
			second: {Type: ai.TypeString},
		},
		Required: []string{first, second},
	}
	if len(descriptions) == 2 {
		s.Properties[first].Description = descriptions[0]
		s.Properties[second].Description = descriptions[1]
	}
	return s
}

// ThoughtSchema is the structured-output contract for one daily thought.
// Every field is required.
func ThoughtSchema() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"date":           {Type: ai.TypeString},
			"bibleVerse":     pair("reference", "text"),
			"hermeticWisdom": pair("source", "belief"),
			"theurgyMagic":   pair("concept", "reflection"),
			"astrology": pair("sign", "influence",
				"Dominant zodiac sign or planetary alignment on this date.",
				"How that celestial energy colors the day's theme."),
			"synthesis": {
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"title":                {Type: ai.TypeString},
					"content":              {Type: ai.TypeString},
					"practicalApplication": {Type: ai.TypeString},
				},
				Required: []string{"title", "content", "practicalApplication"},
			},
		},
		Required: []string{"date", "bibleVerse", "hermeticWisdom", "theurgyMagic", "astrology", "synthesis"},
	}
}
