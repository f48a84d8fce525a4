package integration

import (
	"time"
)

// Action is what the pipeline does with a record after evaluation
type Action int

const (
	// ActionEmit delivers the record in this run
	ActionEmit Action = iota
	// ActionDefer appends the record to the pending queue
	ActionDefer
	// ActionSuppress drops the record without queueing it
	ActionSuppress
)

// String returns a log-friendly name
func (a Action) String() string {
	switch a {
	case ActionEmit:
		return "emit"
	case ActionDefer:
		return "defer"
	case ActionSuppress:
		return "suppress"
	}
	return "unknown"
}

// Evaluation is the first half of a refresh decision: the branch a record
// falls into and, when needed, the price signal to check against the
// published state. Resolve completes it once that state is known.
type Evaluation struct {
	record Record
	action Action
	signal *PriceSignal
	marker time.Time
}

// EvaluateRecord classifies a coerced record relative to now in loc.
// A non-nil error is a *FieldConversionError for a date field that was dropped.
func EvaluateRecord(record Record, now time.Time, loc *time.Location) (*Evaluation, error) {
	now = now.In(loc)

	if v, ok := record[FieldPromoDateFrom]; ok {
		startMs, ok := ValueInt64(v)
		if ok {
			return evaluatePromotion(record, startMs, now, loc), nil
		}
		delete(record, FieldPromoDateFrom)
		return &Evaluation{record: record, action: ActionEmit},
			&FieldConversionError{Field: FieldPromoDateFrom, Value: v, Err: errNotScalar}
	}

	if v, ok := record[FieldEffectiveDate]; ok {
		s, _ := ValueString(v)
		effective, err := ParseCalendarDate(s, loc)
		if err != nil {
			delete(record, FieldEffectiveDate)
			return &Evaluation{record: record, action: ActionEmit},
				&FieldConversionError{Field: FieldEffectiveDate, Value: v, Err: err}
		}
		return evaluateItem(record, effective, now, loc), nil
	}

	// Neither a promotion start nor an effective date: nothing to deliver.
	return &Evaluation{record: record, action: ActionSuppress}, nil
}

func evaluatePromotion(record Record, startMs int64, now time.Time, loc *time.Location) *Evaluation {
	signal := &PriceSignal{
		Price:      "0",
		PromoPrice: record.StringOr(FieldPromoPrice, "0"),
		SaleMode:   record.StringOr(FieldSaleMode, "0"),
	}

	if startMs > now.UnixMilli() {
		e := &Evaluation{
			record: record,
			action: ActionDefer,
			marker: time.UnixMilli(startMs).In(loc),
		}
		if record.HasAny(FieldPromoPrice, FieldSaleMode) {
			e.signal = signal
		}
		return e
	}

	return &Evaluation{record: record, action: ActionEmit, signal: signal, marker: now}
}

func evaluateItem(record Record, effective, now time.Time, loc *time.Location) *Evaluation {
	if effective.After(LocalMidnight(now, loc)) {
		if !record.HasAny(FieldPrice, FieldItemName) {
			return &Evaluation{record: record, action: ActionSuppress}
		}
		delete(record, FieldEffectiveDate)
		record[FieldRefreshMarker] = effective.Format(RefreshMarkerLayout)
		return &Evaluation{record: record, action: ActionDefer}
	}

	e := &Evaluation{record: record, action: ActionEmit, marker: now}
	if record.Has(FieldPrice) {
		e.signal = &PriceSignal{
			Price:      record.StringOr(FieldPrice, "0"),
			PromoPrice: "0",
			SaleMode:   SaleModeNoSignal,
		}
	}
	return e
}

// Action returns the action the record will take
func (e *Evaluation) Action() Action { return e.action }

// Record returns the record under evaluation
func (e *Evaluation) Record() Record { return e.record }

// NeedsLookup reports whether Resolve needs the SKU's published state
func (e *Evaluation) NeedsLookup() bool { return e.signal != nil }

// SKU returns the record's SKU
func (e *Evaluation) SKU() string { return e.record.SKU() }

// Resolve applies the refresh-by-price rule with the published state and
// stamps the refresh marker when it says so. It returns the final action
// and record.
func (e *Evaluation) Resolve(state PublishedState, now time.Time) (Action, Record) {
	if e.signal != nil && ShouldRefresh(state, *e.signal, now) {
		e.record[FieldRefreshMarker] = e.marker.Format(RefreshMarkerLayout)
	}
	return e.action, e.record
}
