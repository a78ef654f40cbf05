package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DayLayout is the calendar-day format used for entry dates.
const DayLayout = "2006-01-02"

// LocalDay formats t as a calendar day in the local time zone.
func LocalDay(t time.Time) string {
	return t.In(time.Local).Format(DayLayout)
}

// Value is a validated logged value. Exactly one variant is set, selected by
// Type.
type Value struct {
	typ ParamType
	b   bool
	i   int
	f   float64
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{typ: TypeBoolean, b: b} }

// ClassValue returns a class (ordinal integer) value.
func ClassValue(i int) Value { return Value{typ: TypeClass, i: i} }

// NumericValue returns a numeric value.
func NumericValue(f float64) Value { return Value{typ: TypeNumeric, f: f} }

// Type returns the variant tag.
func (v Value) Type() ParamType { return v.typ }

// Bool returns the boolean variant.
func (v Value) Bool() bool { return v.b }

// Class returns the class variant.
func (v Value) Class() int { return v.i }

// Float encodes the value as a number: booleans become 1 or 0.
func (v Value) Float() float64 {
	switch v.typ {
	case TypeBoolean:
		if v.b {
			return 1
		}
		return 0
	case TypeClass:
		return float64(v.i)
	default:
		return v.f
	}
}

// String returns the canonical text form: "+"/"-", an integer or a decimal.
func (v Value) String() string {
	switch v.typ {
	case TypeBoolean:
		if v.b {
			return "+"
		}
		return "-"
	case TypeClass:
		return strconv.Itoa(v.i)
	case TypeNumeric:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}

type valueJSON struct {
	Type  ParamType `json:"type"`
	Value string    `json:"value"`
}

// MarshalJSON encodes the value with its type tag and canonical text.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Type: v.typ, Value: v.String()})
}

// UnmarshalJSON decodes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case TypeBoolean:
		switch raw.Value {
		case "+":
			*v = BoolValue(true)
		case "-":
			*v = BoolValue(false)
		default:
			return fmt.Errorf("invalid boolean value %q", raw.Value)
		}
	case TypeClass:
		i, err := strconv.Atoi(raw.Value)
		if err != nil {
			return fmt.Errorf("invalid class value %q: %w", raw.Value, err)
		}
		*v = ClassValue(i)
	case TypeNumeric:
		f, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", raw.Value, err)
		}
		*v = NumericValue(f)
	default:
		return fmt.Errorf("unknown value type %q", raw.Type)
	}
	return nil
}

// DailyEntry is the set of values one user logged for one experiment on one
// calendar day. Values is keyed by parameter name.
type DailyEntry struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"userId"`
	ExperimentID int64            `json:"experimentId"`
	Date         string           `json:"date"`
	Values       map[string]Value `json:"values"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// EntryRepository is the port for daily entry persistence.
//
// UpsertDailyEntry replaces the values of an existing (user, experiment,
// date) entry. ListEntries returns entries in ascending date order.
// FindUsersMissingEntry returns users owning at least one experiment that
// have no entry for day.
type EntryRepository interface {
	UpsertDailyEntry(ctx context.Context, userID, experimentID int64, date string, values map[string]Value) (*DailyEntry, error)
	ListEntries(ctx context.Context, userID, experimentID int64) ([]DailyEntry, error)
	FindUsersMissingEntry(ctx context.Context, day string) ([]User, error)
}
