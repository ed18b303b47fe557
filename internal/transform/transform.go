// Package transform defines the bidirectional mapping between internal records and provider payloads.
package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peteski22/sitebridge/internal/apierr"
	"github.com/peteski22/sitebridge/internal/record"
)

// dateLayout is the calendar date format exchanged with providers.
const dateLayout = "2006-01-02"

// Transformer converts records to and from one provider's payloads.
type Transformer interface {
	// ToExternal builds the provider payload for rec. Unmapped fields are dropped.
	ToExternal(t record.Type, rec record.Record) (any, error)

	// FromExternal builds a record from a provider payload and returns the provider's id for it.
	// Fields absent from the payload are set to zero values.
	FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error)
}

// ID is a provider identifier that may be encoded as a JSON number or string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Decode unmarshals a provider payload into v.
func Decode(provider string, t record.Type, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: decoding %s payload: %w", provider, t, err)
	}
	return nil
}

// Require returns a ValidationError naming the fields of rec that are missing or empty.
func Require(provider string, rec record.Record, fields ...string) error {
	var missing []string
	for _, f := range fields {
		if !rec.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &apierr.ValidationError{
		Fields:     missing,
		Provider:   provider,
		RecordID:   rec.ID,
		RecordType: string(rec.Type),
	}
}

// Unsupported returns the MappingError for a record type the provider does not map.
func Unsupported(provider string, t record.Type) error {
	return &apierr.MappingError{Provider: provider, RecordType: string(t)}
}

// Date normalizes a date or timestamp string to YYYY-MM-DD. Unparseable input is returned unchanged.
func Date(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range []string{dateLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(dateLayout)
		}
	}
	return value
}

// Itoa formats an integer id, returning empty for zero.
func Itoa(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// Atoi parses an integer id, returning zero for empty or invalid input.
func Atoi(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
