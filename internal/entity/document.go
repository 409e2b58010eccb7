package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentRecord is the persisted artifact plus the metadata derived from it.
// A row is created after the original bytes are stored on disk and mutated once
// more when parsing completes.
type DocumentRecord struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	FileSize    int       `json:"fileSize"`
	StoragePath string    `json:"storagePath"`
	// ResizedPath is set for images that were downscaled to satisfy the
	// provider upload limit; it shares the record's base identifier.
	ResizedPath string `json:"resizedPath,omitempty"`

	ExtractedText        string           `json:"extractedText,omitempty"`
	ExtractionMethod     ExtractionMethod `json:"extractionMethod,omitempty"`
	ExtractionConfidence *float64         `json:"extractionConfidence,omitempty"`

	DocumentType   *string    `json:"documentType,omitempty"`
	OwnerName      *string    `json:"ownerName,omitempty"`
	Category       *string    `json:"category,omitempty"`
	IssueDate      *time.Time `json:"issueDate,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	Country        *string    `json:"country,omitempty"`
	AmountValue    *string    `json:"amountValue,omitempty"`
	AmountCurrency *string    `json:"amountCurrency,omitempty"`

	// Metadata is the overflow bag: validated model output with no dedicated
	// column, stored as JSONB.
	Metadata map[string]any `json:"metadata,omitempty"`

	Thumbnail []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentMetadata is the merge stage's output: typed column values to promote
// plus the overflow bag. Nil pointers mean "leave the stored value alone".
type DocumentMetadata struct {
	DocumentType   *string
	OwnerName      *string
	Category       *string
	IssueDate      *time.Time
	ExpiryDate     *time.Time
	Country        *string
	AmountValue    *string
	AmountCurrency *string
	Overflow       map[string]any
}
