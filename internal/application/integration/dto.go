package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/labelsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Run reporting
// ---------------------------------------------------------------------------

// DocumentStatus is the per-document outcome logged and reported for a run
type DocumentStatus string

const (
	DocumentSuccess DocumentStatus = "success"
	DocumentFailed  DocumentStatus = "failed"
	DocumentSkipped DocumentStatus = "skipped"
)

// DocumentResult is the outcome of one vendor document
type DocumentResult struct {
	Document  string                   `json:"document"`
	Kind      integration.DocumentKind `json:"kind"`
	Status    DocumentStatus           `json:"status"`
	Records   int                      `json:"records"`
	Emitted   int                      `json:"emitted"`
	Deferred  int                      `json:"deferred"`
	Delivered int                      `json:"delivered"`
	Error     string                   `json:"error,omitempty"`
}

// RunReport summarizes one RunStore call
type RunReport struct {
	RunID      uuid.UUID        `json:"run_id"`
	Store      string           `json:"store"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Sweep      SweepResult      `json:"sweep"`
	Listed     int              `json:"listed"`
	Ledgered   int              `json:"ledgered"`
	Documents  []DocumentResult `json:"documents"`
	Error      string           `json:"error,omitempty"`
}

// Count returns how many documents ended with status
func (r *RunReport) Count(status DocumentStatus) int {
	n := 0
	for _, d := range r.Documents {
		if d.Status == status {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Component results
// ---------------------------------------------------------------------------

// SendOutcome is what BatchSender.Send reports
type SendOutcome struct {
	Chunks    int   `json:"chunks"`
	Sent      int   `json:"sent"`      // chunks accepted
	Delivered int   `json:"delivered"` // records in accepted chunks
	Dropped   int   `json:"dropped"`   // SKU-only records removed
	Failed    int   `json:"failed"`    // 1-based index of the failed chunk, 0 when none
	Err       error `json:"-"`
}

// OK reports whether every chunk was accepted
func (o SendOutcome) OK() bool { return o.Err == nil }

// SweepResult is what PendingSweeper.Sweep reports
type SweepResult struct {
	Pending   int    `json:"pending"`
	Due       int    `json:"due"`
	Delivered int    `json:"delivered"`
	Rewritten bool   `json:"rewritten"`
	Error     string `json:"error,omitempty"`
}

// Decisions is the RefreshEngine's verdict on a document's records, in record order
type Decisions struct {
	Emit       []integration.Record
	Defer      []integration.Record
	Suppressed int
	Lookups    int
}

// PromoSwitchResult is what PromoSwitchChecker.Check reports
type PromoSwitchResult struct {
	Scanned  int      `json:"scanned"`
	Ending   int      `json:"ending"`
	Appended []string `json:"appended"`
}
