package integration

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Target schema field names the pipeline reasons about.
const (
	FieldSKU           = "sku"
	FieldDiscriminator = "type"
	FieldLineNumber    = "lineNumber"
	FieldPromoDateFrom = "promoDateFrom"
	FieldPromoDateTo   = "promoDateTo"
	FieldPromoPrice    = "rsrvDec1"
	FieldSaleMode      = "saleMode"
	FieldPrice         = "price1"
	FieldEffectiveDate = "rsrvTxt3"
	FieldRefreshMarker = "rsrvTxt2"
	FieldItemName      = "itemName"
)

// Sale mode codes.
const (
	SaleModeNormal   = "00"
	SaleModeNoSignal = "-1"
)

// Date layouts used on the wire.
const (
	CalendarDateLayout  = "20060102"
	RefreshMarkerLayout = "2006/01/02"
	BatchNoLayout       = "20060102150405"
)

// Record is one SKU's attribute set. Values are strings, numbers,
// nested mappings or lists as produced by JSON decoding.
type Record map[string]any

// SKU returns the record's SKU as a string, or "" when absent.
func (r Record) SKU() string {
	v, ok := r[FieldSKU]
	if !ok {
		return ""
	}
	s, _ := ValueString(v)
	return s
}

// Has reports whether key is present.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// HasAny reports whether any of the keys is present.
func (r Record) HasAny(keys ...string) bool {
	for _, k := range keys {
		if r.Has(k) {
			return true
		}
	}
	return false
}

// OnlySKU reports whether the SKU is the sole surviving field.
func (r Record) OnlySKU() bool {
	return len(r) == 1 && r.Has(FieldSKU)
}

// StringOr returns the field rendered as a string, or def when absent.
func (r Record) StringOr(key, def string) string {
	v, ok := r[key]
	if !ok {
		return def
	}
	s, ok := ValueString(v)
	if !ok {
		return def
	}
	return s
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Key returns a canonical form of the record used for equality between
// pending entries. Map keys are emitted sorted, and int64 and float64
// values with the same magnitude encode identically.
func (r Record) Key() string {
	b, err := json.Marshal(map[string]any(r))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(r))
	}
	return string(b)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		l := make([]any, len(t))
		for i, inner := range t {
			l[i] = cloneValue(inner)
		}
		return l
	default:
		return v
	}
}

// ValueString renders scalar values the way the vendor sends them.
func ValueString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// ValueInt64 reads epoch-millisecond style values.
func ValueInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return floatToInt64(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	default:
		return 0, false
	}
}

// floatToInt64 truncates f, refusing values with no int64 representation
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}
