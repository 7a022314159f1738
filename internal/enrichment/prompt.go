package enrichment

import (
	"fmt"
	"strings"
)

// maxSourceChars bounds how much of the original description goes into the
// prompt.
const maxSourceChars = 400

// buildPrompt assembles a concise generation prompt from the item, the
// requested tone and the word limit. Brand, model and color specs are
// included only when the marketplace reported them.
func buildPrompt(it item, tone string, maxWords int) string {
	var brand, model, color string
	for _, attr := range it.Attributes {
		switch attr.ID {
		case "BRAND":
			brand = attr.ValueName
		case "MODEL":
			model = attr.ValueName
		case "COLOR", "MAIN_COLOR":
			if color == "" {
				color = attr.ValueName
			}
		}
	}

	var specs []string
	if brand != "" {
		specs = append(specs, "brand: "+brand)
	}
	if model != "" {
		specs = append(specs, "model: "+model)
	}
	if color != "" {
		specs = append(specs, "color: "+color)
	}

	return fmt.Sprintf(
		"Generate a concise, factual product description for an e-commerce listing. "+
			"Tone: %s. Limit to %d words. Avoid exaggeration. "+
			"Respond strictly in Spanish. "+
			"Specs: %s. "+
			"Source description (trimmed): %s",
		tone, maxWords, strings.Join(specs, ", "), truncateRunes(it.Description, maxSourceChars),
	)
}

// truncateRunes trims a string to at most n characters without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
