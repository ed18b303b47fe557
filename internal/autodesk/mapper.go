package autodesk

import (
	"encoding/json"

	"github.com/peteski22/sitebridge/internal/apierr"
	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

const (
	// defaultPriority is used when a record has no priority.
	defaultPriority = "medium"

	// defaultStatus is the status of a newly exported issue.
	defaultStatus = "open"
)

// Mapper converts records to and from Autodesk payloads.
type Mapper struct{}

// FromExternal implements transform.Transformer.
func (Mapper) FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error) {
	switch t {
	case record.TypeIssue:
		var issue Issue
		if err := transform.Decode(ID, t, raw, &issue); err != nil {
			return record.Record{}, "", err
		}
		return issue.ToDomainType(), issue.ID, nil
	case record.TypeRFI:
		var rfi RFI
		if err := transform.Decode(ID, t, raw, &rfi); err != nil {
			return record.Record{}, "", err
		}
		return rfi.ToDomainType(), rfi.ID, nil
	default:
		return record.Record{}, "", transform.Unsupported(ID, t)
	}
}

// ToExternal implements transform.Transformer.
func (Mapper) ToExternal(t record.Type, rec record.Record) (any, error) {
	switch t {
	case record.TypeIssue:
		if err := transform.Require(ID, rec, record.FieldSubject); err != nil {
			return nil, err
		}
		return issueFromRecord(rec), nil
	case record.TypeRFI:
		rfi := rfiFromRecord(rec)
		var missing []string
		if rfi.Subject == "" {
			missing = append(missing, record.FieldSubject)
		}
		if rfi.Question == "" {
			missing = append(missing, record.FieldQuestion)
		}
		if len(missing) > 0 {
			return nil, &apierr.ValidationError{
				Fields:     missing,
				Provider:   ID,
				RecordID:   rec.ID,
				RecordType: string(t),
			}
		}
		return rfi, nil
	default:
		return nil, transform.Unsupported(ID, t)
	}
}

// ToDomainType converts an Issue to an issue record.
func (i *Issue) ToDomainType() record.Record {
	rec := record.New(record.TypeIssue, "")
	rec.Set(record.FieldAssignedTo, i.AssignedTo)
	rec.Set(record.FieldDescription, i.Description)
	rec.Set(record.FieldDueDate, transform.Date(i.DueDate))
	rec.Set(record.FieldIssueType, i.IssueTypeID)
	rec.Set(record.FieldLocation, locationText(i.Location))
	rec.Set(record.FieldPriority, i.Priority)
	rec.Set(record.FieldStatus, i.Status)
	rec.Set(record.FieldSubject, i.Title)
	return rec
}

// ToDomainType converts an RFI to an RFI record.
func (r *RFI) ToDomainType() record.Record {
	var attrs RFIAttributes
	if r.CustomAttributes != nil {
		attrs = *r.CustomAttributes
	}

	rec := record.New(record.TypeRFI, "")
	rec.Set(record.FieldAssignedTo, r.AssignedTo)
	rec.Set(record.FieldCostImpact, attrs.CostImpact)
	rec.Set(record.FieldDueDate, transform.Date(r.DueDate))
	rec.Set(record.FieldLocation, locationText(r.Location))
	rec.Set(record.FieldPriority, r.Priority)
	rec.Set(record.FieldQuestion, r.Question)
	rec.Set(record.FieldScheduleImpact, attrs.ScheduleImpact)
	rec.Set(record.FieldStatus, r.Status)
	rec.Set(record.FieldSubject, r.Subject)
	return rec
}

// issueFromRecord builds an issue payload.
func issueFromRecord(rec record.Record) Issue {
	issue := Issue{
		AssignedTo:  rec.String(record.FieldAssignedTo),
		Description: rec.String(record.FieldDescription),
		DueDate:     transform.Date(rec.String(record.FieldDueDate)),
		IssueTypeID: rec.String(record.FieldIssueType),
		Priority:    valueOr(rec.String(record.FieldPriority), defaultPriority),
		Status:      valueOr(rec.String(record.FieldStatus), defaultStatus),
		Title:       rec.String(record.FieldSubject),
	}
	if rec.Has(record.FieldLocation) {
		issue.Location = &Location{Description: rec.String(record.FieldLocation)}
	}
	return issue
}

// rfiFromRecord builds an RFI payload. The question falls back to the record description.
func rfiFromRecord(rec record.Record) RFI {
	question := rec.String(record.FieldQuestion)
	if !rec.Has(record.FieldQuestion) {
		question = rec.String(record.FieldDescription)
	}

	rfi := RFI{
		AssignedTo: rec.String(record.FieldAssignedTo),
		CustomAttributes: &RFIAttributes{
			CostImpact:     rec.Float(record.FieldCostImpact),
			ScheduleImpact: rec.Float(record.FieldScheduleImpact),
		},
		DueDate:  transform.Date(rec.String(record.FieldDueDate)),
		Priority: valueOr(rec.String(record.FieldPriority), defaultPriority),
		Question: question,
		Subject:  rec.String(record.FieldSubject),
	}
	if rec.Has(record.FieldLocation) {
		rfi.Location = &Location{Description: rec.String(record.FieldLocation)}
	}
	return rfi
}

// locationText returns the location description, or empty when there is none.
func locationText(l *Location) string {
	if l == nil {
		return ""
	}
	return l.Description
}

// valueOr returns value, or fallback when value is empty.
func valueOr(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
