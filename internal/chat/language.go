package chat

import "strings"

const (
	LanguageAzerbaijani = "az"
	LanguageRussian     = "ru"
	LanguageEnglish     = "en"
)

const (
	azerbaijaniLetters = "əıöüğçş"
	russianLetters     = "абвжзыэюя"
)

// DetectLanguage looks for characteristic letters, Azerbaijani first and
// Russian second, and defaults to English.
func DetectLanguage(text string) string {
	lowered := strings.ToLower(text)
	switch {
	case strings.ContainsAny(lowered, azerbaijaniLetters):
		return LanguageAzerbaijani
	case strings.ContainsAny(lowered, russianLetters):
		return LanguageRussian
	default:
		return LanguageEnglish
	}
}

type LanguagePolicy struct {
	Detect   bool
	Fallback string
}

func (p LanguagePolicy) Tag(text string) string {
	if p.Detect {
		return DetectLanguage(text)
	}
	if tag := strings.TrimSpace(p.Fallback); tag != "" {
		return tag
	}
	return LanguageAzerbaijani
}
