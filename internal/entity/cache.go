package entity

import (
	"encoding/json"
	"time"
)

// OperationKind tags a cache entry with the kind of expensive call it stores.
type OperationKind string

const (
	OpExtractText OperationKind = "extract_text"
	OpParseText   OperationKind = "parse_text"
	OpAnalyze     OperationKind = "analyze"
)

// UsageStats is the token accounting every cacheable result carries.
type UsageStats struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add returns the element-wise sum of two usage stats.
func (u UsageStats) Add(o UsageStats) UsageStats {
	return UsageStats{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ExtractPayload is the stored result of an extract_text operation.
type ExtractPayload struct {
	ExtractedText string           `json:"extractedText"`
	Method        ExtractionMethod `json:"method,omitempty"`
	Confidence    *float64         `json:"confidence,omitempty"`
	PageCount     int              `json:"pageCount,omitempty"`
}

// ParsePayload is the stored result of a parse_text operation. Response is
// always present; Document is absent when schema validation failed.
type ParsePayload struct {
	Document *ParsedDocument `json:"document,omitempty"`
	Response string          `json:"response"`
}

// CacheEntry is one row of the result cache. Entries are inserted once and
// never updated; the key is the SHA-256 digest of the call's identity.
type CacheEntry struct {
	Key       string
	Operation OperationKind
	Provider  string
	Payload   json.RawMessage
	Usage     UsageStats
	CreatedAt time.Time
}
