package entity

// ExtractionMethod says how a document's text was obtained.
type ExtractionMethod string

const (
	// MethodNative means the PDF had a text layer; no confidence is reported.
	MethodNative ExtractionMethod = "native"
	// MethodOCR means image-based recognition; carries a confidence in [0,1].
	MethodOCR ExtractionMethod = "ocr"
	// MethodLLM means a vision-capable language model produced the text.
	MethodLLM ExtractionMethod = "llm"
)

// ExtractionResult is produced once per document and immutable once stored.
type ExtractionResult struct {
	Text       string           `json:"text"`
	Method     ExtractionMethod `json:"method"`
	Confidence *float64         `json:"confidence,omitempty"`
	PageCount  int              `json:"pageCount,omitempty"`
}
