package integration

import (
	"time"
)

// IsDue reports whether a pending entry may be delivered at now.
// Entries with a promotion start are due once it has passed; otherwise the
// refresh marker date decides. Entries with neither never become due.
func IsDue(entry Record, now time.Time, loc *time.Location) bool {
	if v, ok := entry[FieldPromoDateFrom]; ok {
		startMs, ok := ValueInt64(v)
		return ok && startMs <= now.UnixMilli()
	}
	v, ok := entry[FieldRefreshMarker]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	marker, err := time.ParseInLocation(RefreshMarkerLayout, s, loc)
	if err != nil {
		return false
	}
	return !marker.After(now)
}

// SplitDue partitions entries into due and waiting, preserving order
func SplitDue(entries []Record, now time.Time, loc *time.Location) (due, waiting []Record) {
	for _, e := range entries {
		if IsDue(e, now, loc) {
			due = append(due, e)
		} else {
			waiting = append(waiting, e)
		}
	}
	return due, waiting
}

// PendingSKUs returns the set of SKUs with at least one pending entry
func PendingSKUs(entries []Record) map[string]struct{} {
	skus := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if sku := e.SKU(); sku != "" {
			skus[sku] = struct{}{}
		}
	}
	return skus
}
