package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a money value on the wire. It encodes as a bare JSON number,
// or null when it holds no valid value.
type Amount struct {
	decimal.NullDecimal
}

// NewAmount wraps d as a valid Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{decimal.NullDecimal{Decimal: d, Valid: true}}
}

// ParseAmount reads raw user input. Input that is not a number yields an
// invalid Amount rather than an error so callers can decide who rejects it.
func ParseAmount(raw string) Amount {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Amount{}
	}
	return NewAmount(d)
}

// Positive reports whether a is valid and strictly greater than zero.
func (a Amount) Positive() bool {
	return a.Valid && a.Decimal.IsPositive()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	return a.NullDecimal.UnmarshalJSON(b)
}

func (a Amount) String() string {
	if !a.Valid {
		return "<invalid>"
	}
	return a.Decimal.StringFixed(2)
}

// ParseID reads an integer id from raw user input. It returns nil when the
// input is not an integer.
func ParseID(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp accepts RFC 3339 as well as the zone-less ISO form the ledger
// emits for naive datetimes, which is read as UTC.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, perr := time.Parse(layout, s); perr == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
