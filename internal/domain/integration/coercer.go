package integration

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// endOfDayOffsetMs is the distance from local midnight to 23:59:59.000
const endOfDayOffsetMs int64 = 86_399_000

var (
	errNotScalar    = errors.New("value is not a scalar")
	errNotFinite    = errors.New("value is not finite")
	errOutOfRange   = errors.New("value out of integer range")
	errCalendarDate = errors.New("value is not an 8-digit YYYYMMDD date")
)

// Coercer converts string vendor values into typed target values
type Coercer struct {
	types    TypeMap
	location *time.Location
}

// NewCoercer creates a coercer for the given type map and store timezone
func NewCoercer(types TypeMap, location *time.Location) *Coercer {
	if location == nil {
		location = time.UTC
	}
	return &Coercer{types: types, location: location}
}

// Coerce normalises one mapped record in place and returns it.
// A nil record means it had no SKU and must be excluded from output.
// Each returned error is a *FieldConversionError for a field that was dropped.
func (c *Coercer) Coerce(record Record) (Record, []error) {
	delete(record, FieldLineNumber)

	if !record.Has(FieldSKU) {
		return nil, nil
	}

	var errs []error
	for key, value := range record {
		if s, ok := value.(string); ok {
			value = strings.TrimSpace(s)
			record[key] = value
		}
		if value == nil || value == "" {
			delete(record, key)
			continue
		}

		fieldType, declared := c.types[key]
		if !declared {
			continue
		}
		converted, err := c.convert(fieldType, value)
		if err != nil {
			delete(record, key)
			errs = append(errs, &FieldConversionError{Field: key, Value: value, Err: err})
			continue
		}
		record[key] = converted
	}
	return record, errs
}

func (c *Coercer) convert(fieldType FieldType, value any) (any, error) {
	s, ok := ValueString(value)
	if !ok {
		return nil, errNotScalar
	}

	switch fieldType {
	case FieldTypeInteger:
		f, err := parseFinite(s)
		if err != nil {
			return nil, err
		}
		i, ok := floatToInt64(f)
		if !ok {
			return nil, errOutOfRange
		}
		return i, nil
	case FieldTypeNumber:
		return parseFinite(s)
	case FieldTypeStartDate:
		return StartOfDayMillis(s, c.location)
	case FieldTypeEndDate:
		start, err := StartOfDayMillis(s, c.location)
		if err != nil {
			return nil, err
		}
		return start + endOfDayOffsetMs, nil
	}
	return value, nil
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// ParseCalendarDate parses a YYYYMMDD date at local midnight in loc
func ParseCalendarDate(s string, loc *time.Location) (time.Time, error) {
	if len(s) != 8 {
		return time.Time{}, errCalendarDate
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, errCalendarDate
		}
	}
	return time.ParseInLocation(CalendarDateLayout, s, loc)
}

// StartOfDayMillis returns the epoch milliseconds of local midnight for a YYYYMMDD date
func StartOfDayMillis(s string, loc *time.Location) (int64, error) {
	t, err := ParseCalendarDate(s, loc)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// LocalMidnight truncates t to 00:00 of its calendar day in loc
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
