package prompt

// Template selects the instruction text sent to cloud backends. Template
// strings may reference %ActiveApp and %Language, substituted at compose
// time. The custom template uses user-supplied text verbatim.
type Template string

const (
	TemplateNone         Template = "none"
	TemplateProfessional Template = "professional"
	TemplateCasual       Template = "casual"
	TemplateStructured   Template = "structured"
	TemplateTechnical    Template = "technical"
	TemplateCreative     Template = "creative"
	TemplateCustom       Template = "custom"
)

var templateTexts = map[Template]string{
	TemplateNone:         "Output in %Language.",
	TemplateProfessional: "Professional business communication for %ActiveApp. Use proper grammar, formal tone, and clear structure. Output in %Language.",
	TemplateCasual:       "Casual, conversational tone for %ActiveApp. Natural speech with common contractions and informal language. Output in %Language.",
	TemplateStructured:   "Well-structured content for %ActiveApp. Organize thoughts with clear points, proper punctuation, and logical flow. Output in %Language.",
	TemplateTechnical:    "Technical discussion for %ActiveApp. Accurate terminology, precise language, and technical accuracy. Common terms: API, database, server, function, variable, configuration. Output in %Language.",
	TemplateCreative:     "Creative and expressive writing for %ActiveApp. Vivid language, descriptive phrases, and engaging narrative. Output in %Language.",
	TemplateCustom:       "",
}

// Text returns the raw template string before substitution. Custom is empty;
// its text comes from the user.
func (t Template) Text() string {
	return templateTexts[t]
}

// Valid reports whether t names a known template.
func (t Template) Valid() bool {
	_, ok := templateTexts[t]
	return ok
}

// Description is a short user-facing summary of the template's intent.
func (t Template) Description() string {
	switch t {
	case TemplateNone:
		return "No prompt guidance"
	case TemplateProfessional:
		return "Formal business tone"
	case TemplateCasual:
		return "Relaxed, conversational"
	case TemplateStructured:
		return "Organized with clear points"
	case TemplateTechnical:
		return "Technical terms & precision"
	case TemplateCreative:
		return "Expressive & descriptive"
	case TemplateCustom:
		return "Write your own prompt"
	default:
		return ""
	}
}
