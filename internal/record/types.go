// Package record defines the internal domain records exchanged with construction platforms.
package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the kind of internal domain record being synchronized.
type Type string

const (
	// TypeChangeOrder is a contract change order.
	TypeChangeOrder Type = "change_order"

	// TypeCostCode is a job cost code with budget and actuals.
	TypeCostCode Type = "cost_code"

	// TypeDailyReport is a daily site log.
	TypeDailyReport Type = "daily_report"

	// TypeDrawing is a drawing sheet.
	TypeDrawing Type = "drawing"

	// TypeFieldReport is a field inspection or progress report.
	TypeFieldReport Type = "field_report"

	// TypeIssue is a site or model issue (punch item, quality issue).
	TypeIssue Type = "issue"

	// TypeProject is a project or job.
	TypeProject Type = "project"

	// TypeRFI is a request for information.
	TypeRFI Type = "rfi"

	// TypeSubmittal is a submittal package.
	TypeSubmittal Type = "submittal"

	// TypeTask is a field task.
	TypeTask Type = "task"
)

// Types returns every known record type.
func Types() []Type {
	return []Type{
		TypeChangeOrder,
		TypeCostCode,
		TypeDailyReport,
		TypeDrawing,
		TypeFieldReport,
		TypeIssue,
		TypeProject,
		TypeRFI,
		TypeSubmittal,
		TypeTask,
	}
}

// ParseType converts a string to a known record type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown record type: %q", s)
}

// Mapping correlates an internal record with its counterpart in an external provider.
type Mapping struct {
	// ExternalID is the provider's identifier for the record.
	ExternalID string

	// InternalID is the internal record identifier.
	InternalID string

	// Provider is the provider identifier.
	Provider string

	// Type is the record type.
	Type Type
}

// Record is an internal domain record: a stable identifier plus named field values.
type Record struct {
	// Fields holds the record's values keyed by internal field name.
	Fields map[string]any

	// ID is the stable internal identifier.
	ID string

	// Type is the record type.
	Type Type
}

// New creates an empty record of the given type.
func New(t Type, id string) Record {
	return Record{
		Fields: make(map[string]any),
		ID:     id,
		Type:   t,
	}
}

// Set stores a field value, allocating the field map if needed.
func (r *Record) Set(field string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[field] = value
}

// Has reports whether the field is present and non-empty.
func (r Record) Has(field string) bool {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String returns a field as a string, or empty if absent.
func (r Record) String(field string) string {
	switch v := r.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric field as float64, or zero if absent or not numeric.
func (r Record) Float(field string) float64 {
	switch v := r.Fields[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

// Int returns a numeric field as int, or zero if absent or not numeric.
func (r Record) Int(field string) int {
	switch v := r.Fields[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

// Bool returns a boolean field, or false if absent.
func (r Record) Bool(field string) bool {
	switch v := r.Fields[field].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

// Strings returns a list field as strings, or nil if absent.
func (r Record) Strings(field string) []string {
	switch v := r.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}
