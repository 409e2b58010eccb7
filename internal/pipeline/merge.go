package pipeline

import (
	"strings"
	"time"

	"github.com/paperhold/docvault/internal/entity"
)

// Merge flattens a ParsedDocument into typed column values plus the overflow
// bag. It is a pure function and additive-only: absent or empty fields map to
// nil pointers and missing bag keys, so applying the result never clears a
// previously stored value.
func Merge(doc *entity.ParsedDocument) entity.DocumentMetadata {
	var meta entity.DocumentMetadata
	if doc == nil {
		return meta
	}

	meta.DocumentType = strPtr(doc.DocumentType)
	meta.OwnerName = strPtr(doc.Name)
	meta.Category = strPtr(doc.Category)
	meta.Country = strPtr(doc.Country)

	overflow := make(map[string]any)

	if t, ok := parseDate(doc.IssueDate); ok {
		meta.IssueDate = &t
	} else if doc.IssueDate != "" {
		overflow["issueDate"] = doc.IssueDate
	}
	if t, ok := parseDate(doc.ExpiryDate); ok {
		meta.ExpiryDate = &t
	} else if doc.ExpiryDate != "" {
		overflow["expiryDate"] = doc.ExpiryDate
	}

	if doc.Amount != nil && strings.TrimSpace(doc.Amount.Value) != "" {
		meta.AmountValue = strPtr(doc.Amount.Value)
		meta.AmountCurrency = strPtr(doc.Amount.Currency)
	}

	if len(doc.ReferenceNumbers) > 0 {
		overflow["referenceNumbers"] = doc.ReferenceNumbers
	}
	if len(doc.OtherParties) > 0 {
		overflow["otherParties"] = doc.OtherParties
	}
	if s := strings.TrimSpace(doc.DateOfBirth); s != "" {
		overflow["dateOfBirth"] = s
	}
	if s := strings.TrimSpace(doc.IssuingAuthority); s != "" {
		overflow["issuingAuthority"] = s
	}
	if s := strings.TrimSpace(doc.Address); s != "" {
		overflow["address"] = s
	}
	if s := strings.TrimSpace(doc.Language); s != "" {
		overflow["language"] = s
	}
	if len(doc.Keywords) > 0 {
		overflow["keywords"] = doc.Keywords
	}
	if s := strings.TrimSpace(doc.Confidence); s != "" {
		overflow["confidence"] = s
	}
	if len(doc.Fields) > 0 {
		overflow["fields"] = doc.Fields
	}

	if len(overflow) > 0 {
		meta.Overflow = overflow
	}
	return meta
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
