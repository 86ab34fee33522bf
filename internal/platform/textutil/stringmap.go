package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// NormalizeStringMap strips markup from keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string, maxValueRunes int) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := PlainText(key, 0)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = PlainText(value, maxValueRunes)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// PlainText removes HTML from free-form customer input, collapses whitespace and truncates to
// maxRunes when positive.
func PlainText(value string, maxRunes int) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(value))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if maxRunes > 0 {
		if runes := []rune(cleaned); len(runes) > maxRunes {
			cleaned = string(runes[:maxRunes])
		}
	}
	return cleaned
}
