package fieldlens

import (
	"encoding/json"

	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

// defaultPriority is used when a task has no priority.
const defaultPriority = "medium"

// Mapper converts records to and from Fieldlens payloads.
type Mapper struct{}

// FromExternal implements transform.Transformer.
func (Mapper) FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error) {
	switch t {
	case record.TypeTask:
		var task Task
		if err := transform.Decode(ID, t, raw, &task); err != nil {
			return record.Record{}, "", err
		}
		return task.ToDomainType(), string(task.ID), nil
	case record.TypeFieldReport:
		var report Report
		if err := transform.Decode(ID, t, raw, &report); err != nil {
			return record.Record{}, "", err
		}
		return report.ToDomainType(), string(report.ID), nil
	default:
		return record.Record{}, "", transform.Unsupported(ID, t)
	}
}

// ToExternal implements transform.Transformer.
func (Mapper) ToExternal(t record.Type, rec record.Record) (any, error) {
	switch t {
	case record.TypeTask:
		if err := transform.Require(ID, rec, record.FieldSubject); err != nil {
			return nil, err
		}
		priority := rec.String(record.FieldPriority)
		if priority == "" {
			priority = defaultPriority
		}
		return TaskInput{
			AssigneeID: rec.String(record.FieldAssignedTo),
			CustomFields: CustomFields{
				CostImpact:     rec.Float(record.FieldCostImpact),
				ScheduleImpact: rec.Float(record.FieldScheduleImpact),
			},
			Description: rec.String(record.FieldDescription),
			DueDate:     transform.Date(rec.String(record.FieldDueDate)),
			Location:    rec.String(record.FieldLocation),
			Priority:    priority,
			Title:       rec.String(record.FieldSubject),
		}, nil
	case record.TypeFieldReport:
		if err := transform.Require(ID, rec, record.FieldSubject, record.FieldDate); err != nil {
			return nil, err
		}
		photos := rec.Strings(record.FieldPhotos)
		if photos == nil {
			photos = []string{}
		}
		return Report{
			CrewCount:     rec.Int(record.FieldWorkers),
			Date:          transform.Date(rec.String(record.FieldDate)),
			Notes:         rec.String(record.FieldNotes),
			Photos:        photos,
			Title:         rec.String(record.FieldSubject),
			Weather:       rec.String(record.FieldWeather),
			WorkPerformed: rec.String(record.FieldWorkPerformed),
		}, nil
	default:
		return nil, transform.Unsupported(ID, t)
	}
}

// ToDomainType converts a Report to a field report record.
func (r *Report) ToDomainType() record.Record {
	photos := r.Photos
	if photos == nil {
		photos = []string{}
	}

	rec := record.New(record.TypeFieldReport, "")
	rec.Set(record.FieldDate, transform.Date(r.Date))
	rec.Set(record.FieldNotes, r.Notes)
	rec.Set(record.FieldPhotos, photos)
	rec.Set(record.FieldSubject, r.Title)
	rec.Set(record.FieldWeather, r.Weather)
	rec.Set(record.FieldWorkPerformed, r.WorkPerformed)
	rec.Set(record.FieldWorkers, r.CrewCount)
	return rec
}

// ToDomainType converts a Task to a task record.
func (t *Task) ToDomainType() record.Record {
	var assignee string
	if t.Assignee != nil {
		assignee = string(t.Assignee.ID)
	}
	priority := t.Priority
	if priority == "" {
		priority = defaultPriority
	}

	rec := record.New(record.TypeTask, "")
	rec.Set(record.FieldAssignedTo, assignee)
	rec.Set(record.FieldCreatedAt, t.CreatedAt)
	rec.Set(record.FieldDescription, t.Description)
	rec.Set(record.FieldDueDate, transform.Date(t.DueDate))
	rec.Set(record.FieldLocation, t.Location)
	rec.Set(record.FieldPriority, priority)
	rec.Set(record.FieldStatus, t.Status)
	rec.Set(record.FieldSubject, t.Title)
	return rec
}
