package prompt

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testComposer(app string, keyboardTag string) *Composer {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewComposer(StaticActiveApp{Name: app}, StaticKeyboard{Tag: keyboardTag}, logger)
}

func TestComposeProfessional(t *testing.T) {
	c := testComposer("Mail", "")
	got := c.Compose(TemplateProfessional, "", LanguageEnglish)

	want := "Professional business communication for Mail. Use proper grammar, formal tone, and clear structure. Output in English."
	if got != want {
		t.Fatalf("Compose() = %q, want %q", got, want)
	}
	if strings.Contains(got, "%ActiveApp") || strings.Contains(got, "%Language") {
		t.Fatalf("placeholders not fully substituted: %q", got)
	}
}

func TestComposeCustomUsesTextVerbatim(t *testing.T) {
	c := testComposer("Slack", "")
	got := c.Compose(TemplateCustom, "Dictation for %ActiveApp in %Language.", LanguageGerman)
	want := "Dictation for Slack in German."
	if got != want {
		t.Fatalf("Compose() = %q, want %q", got, want)
	}
}

func TestComposeUnknownActiveApp(t *testing.T) {
	c := testComposer("", "")
	got := c.Compose(TemplateCasual, "", LanguageEnglish)
	if !strings.Contains(got, "for Unknown.") {
		t.Fatalf("expected Unknown fallback, got %q", got)
	}
}

func TestComposeAutoLanguageFromKeyboard(t *testing.T) {
	c := testComposer("Mail", "de-DE")
	got := c.Compose(TemplateNone, "", LanguageAuto)
	if got != "Output in German." {
		t.Fatalf("Compose() = %q, want %q", got, "Output in German.")
	}
}

func TestComposeAutoLanguageFallbackPhrase(t *testing.T) {
	c := testComposer("Mail", "")
	got := c.Compose(TemplateNone, "", LanguageAuto)
	if got != "Output in the same language as the input." {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestComposeAutoLanguageUnknownCodeUppercased(t *testing.T) {
	c := testComposer("Mail", "xx-XX")
	got := c.Compose(TemplateNone, "", LanguageAuto)
	if got != "Output in XX-XX." {
		t.Fatalf("unexpected unknown-code rendering: %q", got)
	}
}

func TestLanguageCodeResolution(t *testing.T) {
	cases := []struct {
		name     string
		language Language
		keyboard string
		want     string
	}{
		{"fixed language", LanguageSpanish, "", "es"},
		{"auto from keyboard tag", LanguageAuto, "de-DE", "de"},
		{"auto from underscore locale", LanguageAuto, "pt_BR", "pt"},
		{"auto unresolved", LanguageAuto, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testComposer("", tc.keyboard)
			if got := c.LanguageCode(tc.language); got != tc.want {
				t.Fatalf("LanguageCode(%q) = %q, want %q", tc.language, got, tc.want)
			}
		})
	}
}

func TestKeyboardLanguageNameTable(t *testing.T) {
	if got := keyboardLanguageName("de-DE"); got != "German" {
		t.Fatalf("expected German, got %q", got)
	}
	if got := keyboardLanguageName("uk"); got != "Ukrainian" {
		t.Fatalf("expected Ukrainian, got %q", got)
	}
}

func TestTemplateValidity(t *testing.T) {
	for _, tmpl := range []Template{
		TemplateNone, TemplateProfessional, TemplateCasual, TemplateStructured,
		TemplateTechnical, TemplateCreative, TemplateCustom,
	} {
		if !tmpl.Valid() {
			t.Fatalf("template %q should be valid", tmpl)
		}
	}
	if Template("poetic").Valid() {
		t.Fatal("unknown template must be invalid")
	}
}

func TestLocaleKeyboard(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")

	tag, ok := LocaleKeyboard{}.PrimaryLanguage()
	if !ok || tag != "de-DE" {
		t.Fatalf("PrimaryLanguage() = %q, %v", tag, ok)
	}

	t.Setenv("LANG", "C")
	if _, ok := (LocaleKeyboard{}).PrimaryLanguage(); ok {
		t.Fatal("C locale must not resolve to a language")
	}
}
