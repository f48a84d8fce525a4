package integration

import (
	"context"
)

// ---------------------------------------------------------------------------
// Upstream ports
// ---------------------------------------------------------------------------

// DocumentFeed is the port to the vendor back-office document feed
type DocumentFeed interface {
	// ListDocuments returns the documents currently offered for the store
	ListDocuments(ctx context.Context, store Store) ([]DocumentRef, error)

	// Download returns the transport-encoded payload of one document
	Download(ctx context.Context, store Store, doc DocumentRef) (string, error)
}

// Decoder turns a transport-encoded payload into a document
type Decoder interface {
	Decode(doc DocumentRef, data string) (Payload, error)
}

// ArticleCatalog is the port to the label platform's published article state
type ArticleCatalog interface {
	// LookupArticle returns the published attributes of one SKU
	LookupArticle(ctx context.Context, storeCode, sku string) (PublishedState, error)

	// ListArticles returns the published attributes of every article in the store
	ListArticles(ctx context.Context, storeCode string) ([]Record, error)
}

// ---------------------------------------------------------------------------
// Delivery port
// ---------------------------------------------------------------------------

// Batch is one delivery call to the label platform
type Batch struct {
	StoreCode string
	BatchNo   string
	Items     []Record
}

// DeliveryReceipt is the platform's answer to a batch
type DeliveryReceipt struct {
	StoreCode string `json:"storeCode"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Accepted reports whether the platform echoed the expected store code
func (r DeliveryReceipt) Accepted(storeCode string) bool {
	return r.ErrorCode == "" && r.StoreCode == storeCode
}

// DeliveryTarget is the port to the label platform integration endpoint
type DeliveryTarget interface {
	Deliver(ctx context.Context, batch Batch) (DeliveryReceipt, error)
}

// ---------------------------------------------------------------------------
// State ports
// ---------------------------------------------------------------------------

// Ledger is the per-store set of fully integrated document identifiers.
// Implementations keep each store's entries sorted and unique.
type Ledger interface {
	Has(ctx context.Context, storeCode, id string) (bool, error)
	Insert(ctx context.Context, storeCode, id string) error
	Remove(ctx context.Context, storeCode, id string) error
	List(ctx context.Context, storeCode string) ([]string, error)
}

// PendingQueue is the per-store list of deferred records
type PendingQueue interface {
	Append(ctx context.Context, storeCode string, entries ...Record) error
	List(ctx context.Context, storeCode string) ([]Record, error)
	Replace(ctx context.Context, storeCode string, entries []Record) error
}

// Archive keeps a reference copy of each decoded document
type Archive interface {
	Save(ctx context.Context, storeCode, id string, payload Payload) error
}
