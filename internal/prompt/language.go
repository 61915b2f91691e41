package prompt

import "strings"

// Language is the configured output language. Auto carries no fixed code or
// name; it is resolved from the system keyboard language at compose time.
type Language string

const (
	LanguageAuto       Language = "auto"
	LanguageEnglish    Language = "english"
	LanguageRussian    Language = "russian"
	LanguageSpanish    Language = "spanish"
	LanguageFrench     Language = "french"
	LanguageGerman     Language = "german"
	LanguageChinese    Language = "chinese"
	LanguageJapanese   Language = "japanese"
	LanguageKorean     Language = "korean"
	LanguagePortuguese Language = "portuguese"
	LanguageItalian    Language = "italian"
	LanguageUkrainian  Language = "ukrainian"
)

type languageInfo struct {
	display string
	code    string
}

var languages = map[Language]languageInfo{
	LanguageEnglish:    {display: "English", code: "en"},
	LanguageRussian:    {display: "Russian", code: "ru"},
	LanguageSpanish:    {display: "Spanish", code: "es"},
	LanguageFrench:     {display: "French", code: "fr"},
	LanguageGerman:     {display: "German", code: "de"},
	LanguageChinese:    {display: "Chinese", code: "zh"},
	LanguageJapanese:   {display: "Japanese", code: "ja"},
	LanguageKorean:     {display: "Korean", code: "ko"},
	LanguagePortuguese: {display: "Portuguese", code: "pt"},
	LanguageItalian:    {display: "Italian", code: "it"},
	LanguageUkrainian:  {display: "Ukrainian", code: "uk"},
}

// Valid reports whether l names Auto or a known language.
func (l Language) Valid() bool {
	if l == LanguageAuto {
		return true
	}
	_, ok := languages[l]
	return ok
}

// DisplayName returns the human-readable language name ("German"). Auto has
// no fixed name and returns "Auto".
func (l Language) DisplayName() string {
	if info, ok := languages[l]; ok {
		return info.display
	}
	return "Auto"
}

// Code returns the ISO-639-1 code for a fixed language, or "" for Auto.
func (l Language) Code() string {
	if info, ok := languages[l]; ok {
		return info.code
	}
	return ""
}

// languageNameFallback is used when Auto cannot be resolved to a concrete
// language.
const languageNameFallback = "the same language as the input"

// keyboardLanguageNames maps base ISO-639-1 codes reported by keyboard
// layouts and locales to display names for prompt text.
var keyboardLanguageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"it": "Italian",
	"uk": "Ukrainian",
	"pl": "Polish",
	"nl": "Dutch",
	"ar": "Arabic",
	"he": "Hebrew",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"th": "Thai",
	"cs": "Czech",
	"sv": "Swedish",
	"da": "Danish",
	"fi": "Finnish",
	"no": "Norwegian",
	"hu": "Hungarian",
	"el": "Greek",
	"ro": "Romanian",
	"bg": "Bulgarian",
	"hr": "Croatian",
	"sk": "Slovak",
	"sl": "Slovenian",
}

// baseCode reduces a locale or keyboard tag ("de-DE", "pt_BR.UTF-8") to its
// base ISO-639-1 code.
func baseCode(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		tag = tag[:i]
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// keyboardLanguageName maps a keyboard tag to a display name. Unknown codes
// fall back to the uppercased tag so the prompt still names something.
func keyboardLanguageName(tag string) string {
	if name, ok := keyboardLanguageNames[baseCode(tag)]; ok {
		return name
	}
	return strings.ToUpper(tag)
}
