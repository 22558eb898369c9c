package llm

import _ "embed"

var (
	//go:embed prompts/sentiment.txt
	promptSentiment string
	//go:embed prompts/categorization.txt
	promptCategorization string
	//go:embed prompts/actions.txt
	promptActions string
	//go:embed prompts/legacy.txt
	promptLegacy string
)

// PromptTemplate returns the system prompt for a template id and whether it is known.
func PromptTemplate(templateID string) (string, bool) {
	switch templateID {
	case TemplateSentiment:
		return promptSentiment, true
	case TemplateCategorization:
		return promptCategorization, true
	case TemplateActions:
		return promptActions, true
	case TemplateLegacy:
		return promptLegacy, true
	default:
		return "", false
	}
}
