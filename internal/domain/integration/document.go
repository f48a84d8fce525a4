package integration

import (
	"strings"
)

// DocumentKind is the closed set of vendor document types
type DocumentKind string

const (
	// DocumentKindItem carries item master and price data
	DocumentKindItem DocumentKind = "ITM"
	// DocumentKindPromotion carries promotion windows and discounted prices
	DocumentKindPromotion DocumentKind = "PRM"
)

// IsValid returns true if the kind is one the pipeline can transform
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindItem, DocumentKindPromotion:
		return true
	}
	return false
}

// ListKey returns the JSON key holding the record list for this kind
func (k DocumentKind) ListKey() string {
	switch k {
	case DocumentKindItem:
		return "items"
	case DocumentKindPromotion:
		return "promotions"
	}
	return ""
}

// String returns the string representation
func (k DocumentKind) String() string {
	return string(k)
}

// ParseDocumentKinds converts configured type tags, rejecting unknown ones
func ParseDocumentKinds(tags []string) ([]DocumentKind, error) {
	kinds := make([]DocumentKind, 0, len(tags))
	for _, tag := range tags {
		k := DocumentKind(strings.ToUpper(strings.TrimSpace(tag)))
		if !k.IsValid() {
			return nil, ErrUnsupportedDocument
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// DocumentRef is an entry of the vendor document list
type DocumentRef struct {
	Name     string `json:"name" validate:"required"`
	FileType string `json:"fileType"`
}

// ID returns the ledger identifier: the vendor name without its .gz suffix
func (d DocumentRef) ID() string {
	return strings.TrimSuffix(d.Name, ".gz")
}

// Kind returns the document kind declared by the feed
func (d DocumentRef) Kind() DocumentKind {
	return DocumentKind(d.FileType)
}

// NameFileType returns the type tag encoded in the first three characters of the name
func (d DocumentRef) NameFileType() string {
	if len(d.Name) < 3 {
		return d.Name
	}
	return d.Name[:3]
}

// Payload is a decoded vendor document
type Payload map[string]any

// Records returns the record list for kind. A missing or malformed list yields no records.
func (p Payload) Records(kind DocumentKind) []Record {
	raw, ok := p[kind.ListKey()].([]any)
	if !ok {
		return nil
	}
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records
}

// Store identifies one label-platform store and its vendor-side coordinates
type Store struct {
	Code          string         // label platform store code, e.g. "02"
	VendorStoreID string         // vendor store identifier, e.g. "52DUG"
	DepartmentID  string         // vendor department, e.g. "12NEO"
	Source        string         // vendor source channel, e.g. "CT"
	Kinds         []DocumentKind // accepted document kinds
}

// Validate checks the store carries every coordinate the upstreams need
func (s Store) Validate() error {
	if s.Code == "" || s.VendorStoreID == "" || s.DepartmentID == "" || s.Source == "" {
		return ErrInvalidStore
	}
	return nil
}

// Accepts reports whether documents of kind are integrated for this store
func (s Store) Accepts(kind DocumentKind) bool {
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
