package integration

import (
	"regexp"
)

// FieldMap maps vendor field names to target field names for one document kind
type FieldMap map[string]string

// FieldType is a declared target value type
type FieldType string

const (
	FieldTypeInteger   FieldType = "integer"
	FieldTypeNumber    FieldType = "number"
	FieldTypeStartDate FieldType = "startdate"
	FieldTypeEndDate   FieldType = "enddate"
)

// IsValid returns true for the four supported conversions
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeInteger, FieldTypeNumber, FieldTypeStartDate, FieldTypeEndDate:
		return true
	}
	return false
}

// TypeMap maps target field names to their declared type
type TypeMap map[string]FieldType

// KeyMaps bundles the per-kind field maps with the shared type map
type KeyMaps struct {
	Fields map[DocumentKind]FieldMap
	Types  TypeMap
}

// FieldMapFor returns the field map for kind
func (k KeyMaps) FieldMapFor(kind DocumentKind) (FieldMap, error) {
	fm, ok := k.Fields[kind]
	if !ok {
		return nil, ErrUnsupportedDocument
	}
	return fm, nil
}

var zeroLike = regexp.MustCompile(`^0+(\.0+)?$`)

// MapFields renames the record's keys through fm. Keys outside fm are dropped,
// and so are empty or zero-valued fields other than the type discriminator.
// Nested mappings and lists of mappings are renamed with the same table.
func MapFields(record Record, fm FieldMap) Record {
	return Record(mapObject(record, fm))
}

func mapObject(obj map[string]any, fm FieldMap) map[string]any {
	out := make(map[string]any, len(obj))
	for oldKey, value := range obj {
		newKey, ok := fm[oldKey]
		if !ok {
			continue
		}
		if oldKey != FieldDiscriminator && newKey != FieldDiscriminator && isEmptyValue(value) {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			out[newKey] = mapObject(v, fm)
		case Record:
			out[newKey] = Record(mapObject(v, fm))
		case []any:
			list := make([]any, len(v))
			for i, item := range v {
				if m, ok := item.(map[string]any); ok {
					list[i] = mapObject(m, fm)
				} else {
					list[i] = item
				}
			}
			out[newKey] = list
		default:
			out[newKey] = value
		}
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || zeroLike.MatchString(t)
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}
	if s, ok := ValueString(v); ok {
		return zeroLike.MatchString(s)
	}
	return false
}
