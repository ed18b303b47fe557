package plangrid

import (
	"encoding/json"

	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

const (
	// defaultPriority is used when a record has no priority.
	defaultPriority = "medium"

	// defaultSheetStatus is the sheet status when PlanGrid omits one.
	defaultSheetStatus = "active"
)

// Mapper converts records to and from PlanGrid payloads.
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
	case record.TypeDrawing:
		var sheet Sheet
		if err := transform.Decode(ID, t, raw, &sheet); err != nil {
			return record.Record{}, "", err
		}
		return sheet.ToDomainType(), sheet.ID, nil
	default:
		return record.Record{}, "", transform.Unsupported(ID, t)
	}
}

// ToExternal implements transform.Transformer.
func (Mapper) ToExternal(t record.Type, rec record.Record) (any, error) {
	if t != record.TypeIssue {
		return nil, transform.Unsupported(ID, t)
	}
	if err := transform.Require(ID, rec, record.FieldSubject); err != nil {
		return nil, err
	}

	priority := rec.String(record.FieldPriority)
	if priority == "" {
		priority = defaultPriority
	}

	return IssueInput{
		AssigneeID: rec.String(record.FieldAssignedTo),
		CustomFields: CustomFields{
			CostImpact:     rec.Float(record.FieldCostImpact),
			ScheduleImpact: rec.Float(record.FieldScheduleImpact),
		},
		Description: rec.String(record.FieldDescription),
		DueDate:     transform.Date(rec.String(record.FieldDueDate)),
		Location: Location{
			SheetID: rec.String(record.FieldSheetID),
			X:       rec.Float(record.FieldLocationX),
			Y:       rec.Float(record.FieldLocationY),
		},
		Priority: priority,
		Title:    rec.String(record.FieldSubject),
	}, nil
}

// ToDomainType converts an Issue to an issue record.
func (i *Issue) ToDomainType() record.Record {
	var (
		assignee string
		impacts  CustomFields
		location Location
	)
	if i.Assignee != nil {
		assignee = i.Assignee.ID
	}
	if i.CustomFields != nil {
		impacts = *i.CustomFields
	}
	if i.Location != nil {
		location = *i.Location
	}

	rec := record.New(record.TypeIssue, "")
	rec.Set(record.FieldAssignedTo, assignee)
	rec.Set(record.FieldCostImpact, impacts.CostImpact)
	rec.Set(record.FieldCreatedAt, i.CreatedAt)
	rec.Set(record.FieldDescription, i.Description)
	rec.Set(record.FieldDueDate, transform.Date(i.DueDate))
	rec.Set(record.FieldLocationX, location.X)
	rec.Set(record.FieldLocationY, location.Y)
	rec.Set(record.FieldPriority, i.Priority)
	rec.Set(record.FieldScheduleImpact, impacts.ScheduleImpact)
	rec.Set(record.FieldSheetID, location.SheetID)
	rec.Set(record.FieldStatus, i.Status)
	rec.Set(record.FieldSubject, i.Title)
	return rec
}

// ToDomainType converts a Sheet to a drawing record.
func (s *Sheet) ToDomainType() record.Record {
	status := s.Status
	if status == "" {
		status = defaultSheetStatus
	}

	rec := record.New(record.TypeDrawing, "")
	rec.Set(record.FieldCreatedAt, s.UploadedAt)
	rec.Set(record.FieldDiscipline, s.Discipline)
	rec.Set(record.FieldName, s.Name)
	rec.Set(record.FieldNumber, s.Number)
	rec.Set(record.FieldRevision, s.Revision)
	rec.Set(record.FieldStatus, status)
	return rec
}
