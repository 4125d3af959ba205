package voice

import (
	"strings"

	"github.com/fraudshield/voicedesk/domain/repositories"
)

// SelectVoice picks the voice for locale: an exact locale match first, then a
// voice sharing the language prefix, then the first voice available.
func SelectVoice(voices []repositories.Voice, locale string) (repositories.Voice, bool) {
	if len(voices) == 0 {
		return repositories.Voice{}, false
	}

	want := normalizeLocale(locale)
	for _, v := range voices {
		if normalizeLocale(v.Locale) == want {
			return v, true
		}
	}

	lang := languageOf(want)
	for _, v := range voices {
		if languageOf(normalizeLocale(v.Locale)) == lang {
			return v, true
		}
	}

	return voices[0], true
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func languageOf(locale string) string {
	if i := strings.IndexByte(locale, '-'); i >= 0 {
		return locale[:i]
	}
	return locale
}
