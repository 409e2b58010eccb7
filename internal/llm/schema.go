package llm

import "encoding/json"

// SchemaJSON renders the document schema as indented JSON for embedding in a
// prompt.
func SchemaJSON() string {
	b, _ := json.MarshalIndent(BuildDocumentJSONSchema(), "", "  ")
	return string(b)
}

// BuildDocumentJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is handed to the model as the output contract and used
// locally to validate what comes back.
func BuildDocumentJSONSchema() map[string]any {
	dateProp := map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"documentType": map[string]any{"type": "string", "minLength": 1},
			"name":         map[string]any{"type": "string"},
			"category":     map[string]any{"type": "string"},
			"issueDate":    dateProp,
			"expiryDate":   dateProp,
			"country":      map[string]any{"type": "string", "minLength": 2, "maxLength": 2},
			"amount": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"value":    map[string]any{"type": "string", "pattern": `^-?\d+(\.\d+)?$`},
					"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
				},
				"required": []string{"value"},
			},
			"referenceNumbers": stringList,
			"otherParties":     stringList,
			"dateOfBirth":      dateProp,
			"issuingAuthority": map[string]any{"type": "string"},
			"address":          map[string]any{"type": "string"},
			"language":         map[string]any{"type": "string"},
			"keywords":         stringList,
			"confidence":       map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
			"fields": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []string{"documentType"},
	}
}
