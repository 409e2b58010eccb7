package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/paperhold/docvault/constants"
)

// ExtractionPrompt asks a vision model to transcribe a document image. It is
// part of every extract_text cache key, so changing it invalidates old entries.
const ExtractionPrompt = "Extract all text from this document image. " +
	"Preserve the reading order and line breaks. Return the text only, with no commentary."

// BuildParseSystemPrompt composes the system message for the parse stage.
// promptOverride, when non-empty, is appended as an extra instruction rather
// than replacing the schema contract.
func BuildParseSystemPrompt(promptOverride string) string {
	parts := []string{
		"You are a document metadata parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The input is text extracted from a scanned document (ID card, passport, invoice, contract, certificate, letter or similar).",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"For 'country' use the ISO 3166-1 alpha-2 code. For monetary amounts use a decimal string plus a 3-letter ISO 4217 currency code.",
		"'name' is the document's subject or owner, not the issuer.",
		"Put identifiers such as passport, invoice or case numbers into 'referenceNumbers'.",
		"Anything informative that has no dedicated property goes into the 'fields' object as short key/value strings.",
		"Set 'confidence' to high, medium or low depending on how legible and complete the text is.",
		"Never output null. If a field is not present in the text, omit it.",
	}
	if po := strings.TrimSpace(promptOverride); po != "" {
		parts = append(parts, "Additional instructions: "+po)
	}
	return strings.Join(parts, " ")
}

// BuildParseUserPrompt packages the extracted text, truncated to keep the
// request bounded.
func BuildParseUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Document text:\n")
	if len(text) > constants.MaxParseChars {
		// back up to a rune boundary so the cut never splits a character
		cut := constants.MaxParseChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		b.WriteString(text[:cut])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}
