package entity

// Amount is a decimal-safe monetary value with its ISO 4217 currency.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

// ParsedDocument is the structured metadata a language model derives from
// extracted text. The well-known fields get dedicated columns on the document
// record; the rest travels in the overflow bag.
type ParsedDocument struct {
	DocumentType     string            `json:"documentType,omitempty"`
	Name             string            `json:"name,omitempty"`
	Category         string            `json:"category,omitempty"`
	IssueDate        string            `json:"issueDate,omitempty"`  // YYYY-MM-DD
	ExpiryDate       string            `json:"expiryDate,omitempty"` // YYYY-MM-DD
	Country          string            `json:"country,omitempty"`
	Amount           *Amount           `json:"amount,omitempty"`
	ReferenceNumbers []string          `json:"referenceNumbers,omitempty"`
	OtherParties     []string          `json:"otherParties,omitempty"`
	DateOfBirth      string            `json:"dateOfBirth,omitempty"`
	IssuingAuthority string            `json:"issuingAuthority,omitempty"`
	Address          string            `json:"address,omitempty"`
	Language         string            `json:"language,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	Confidence       string            `json:"confidence,omitempty"` // high | medium | low
	Fields           map[string]string `json:"fields,omitempty"`
}
