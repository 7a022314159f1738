package llm

import "strings"

// modelPrefix is the canonical namespace Gemini uses for model names.
const modelPrefix = "models/"

// StripModelPrefix returns the bare model identifier.
func StripModelPrefix(name string) string {
	return strings.TrimPrefix(name, modelPrefix)
}

// WithModelPrefix returns the canonically prefixed model name.
func WithModelPrefix(name string) string {
	if strings.HasPrefix(name, modelPrefix) {
		return name
	}
	return modelPrefix + name
}

// ModelAvailable reports whether name matches any entry in available,
// accepting either the bare identifier or the prefixed form on both sides.
func ModelAvailable(name string, available []string) bool {
	bare := StripModelPrefix(name)
	for _, candidate := range available {
		if StripModelPrefix(candidate) == bare {
			return true
		}
	}
	return false
}
