package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/paperhold/docvault/constants"
	"github.com/paperhold/docvault/internal/entity"
)

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// DecodeDocument turns a raw model response into a ParsedDocument. Validation
// failure is not an error: the document comes back nil and the caller keeps
// the raw response, so a sloppy model degrades gracefully instead of failing
// the upload.
func DecodeDocument(response string, logger *slog.Logger) *entity.ParsedDocument {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(StripCodeFences(response))

	if err := ValidateJSONAgainstSchema(BuildDocumentJSONSchema(), raw); err != nil {
		logger.Warn("llm.parse.schema_validation_failed", "err", err)
		return nil
	}
	var doc entity.ParsedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("llm.parse.unmarshal_failed", "err", err)
		return nil
	}
	capOverflowFields(&doc)
	return &doc
}

// StripCodeFences removes a surrounding markdown code fence, which models emit
// even when told not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// capOverflowFields enforces the cap on free-form fields; the model sometimes
// dumps every line of a document in there.
func capOverflowFields(doc *entity.ParsedDocument) {
	if len(doc.Fields) <= constants.MaxOverflowFields {
		return
	}
	keys := make([]string, 0, len(doc.Fields))
	for k := range doc.Fields {
		keys = append(keys, k)
	}
	// deterministic choice of survivors
	sort.Strings(keys)
	trimmed := make(map[string]string, constants.MaxOverflowFields)
	for _, k := range keys[:constants.MaxOverflowFields] {
		trimmed[k] = doc.Fields[k]
	}
	doc.Fields = trimmed
}
