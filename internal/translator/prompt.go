package translator

import (
	"fmt"
	"strings"
)

// buildSystemPrompt constructs the shared instruction preamble every LLM
// backend sends ahead of the source text: the language pair, optional
// glossary terms, a sliding-window context passage, and any site-supplied
// extra instructions. Both OllamaTranslator and OpenRouterService build on
// this so a glossary/context addition only has to be made once.
func buildSystemPrompt(sourceLang, targetLang, previousContext string, glossary map[string]string, instructions string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes, just the translation.")

	if instructions != "" {
		sb.WriteString(" ")
		sb.WriteString(instructions)
	}

	if len(glossary) > 0 {
		sb.WriteString("\n\nTERMINOLOGY (use these exact translations):\n")
		for src, tgt := range glossary {
			sb.WriteString(fmt.Sprintf("  %s -> %s\n", src, tgt))
		}
	}

	if previousContext != "" {
		sb.WriteString(fmt.Sprintf("\n\nCONTEXT (previous passage for continuity — do NOT retranslate this):\n...%s", previousContext))
	}

	return sb.String()
}
