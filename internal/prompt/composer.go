package prompt

import (
	"log/slog"
	"strings"
)

// ActiveAppSource reports the name of the application currently holding
// focus. Implementations live outside the engine (desktop integration).
type ActiveAppSource interface {
	ActiveApplication() string
}

// KeyboardSource reports the primary language tag of the current keyboard
// layout or locale ("de-DE"). The second return is false when the system
// language cannot be determined.
type KeyboardSource interface {
	PrimaryLanguage() (string, bool)
}

// Composer builds the instruction text for cloud backends from a template
// and live context, and resolves the output-language code for the API
// language field.
type Composer struct {
	activeApp ActiveAppSource
	keyboard  KeyboardSource
	logger    *slog.Logger
}

func NewComposer(activeApp ActiveAppSource, keyboard KeyboardSource, logger *slog.Logger) *Composer {
	return &Composer{
		activeApp: activeApp,
		keyboard:  keyboard,
		logger:    logger.With(slog.String("component", "prompt-composer")),
	}
}

// Compose renders the template: custom templates use customText verbatim as
// the base, others use their fixed text. %ActiveApp and %Language are then
// substituted from live context.
func (c *Composer) Compose(template Template, customText string, language Language) string {
	base := template.Text()
	if template == TemplateCustom {
		base = customText
	}

	composed := strings.ReplaceAll(base, "%ActiveApp", c.activeApplicationName())
	composed = strings.ReplaceAll(composed, "%Language", c.languageDescription(language))
	return composed
}

// LanguageCode resolves the ISO-639-1 code for the cloud API language
// field. Fixed languages map to their code; Auto follows the keyboard
// language and returns "" when it cannot be resolved.
func (c *Composer) LanguageCode(language Language) string {
	if language != LanguageAuto {
		return language.Code()
	}
	tag, ok := c.keyboard.PrimaryLanguage()
	if !ok {
		return ""
	}
	return baseCode(tag)
}

func (c *Composer) languageDescription(language Language) string {
	if language != LanguageAuto {
		return language.DisplayName()
	}
	tag, ok := c.keyboard.PrimaryLanguage()
	if !ok {
		c.logger.Debug("keyboard language unresolved, using fallback phrase")
		return languageNameFallback
	}
	return keyboardLanguageName(tag)
}

func (c *Composer) activeApplicationName() string {
	if c.activeApp != nil {
		if name := strings.TrimSpace(c.activeApp.ActiveApplication()); name != "" {
			return name
		}
	}
	return "Unknown"
}
