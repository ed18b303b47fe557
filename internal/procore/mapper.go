package procore

import (
	"encoding/json"

	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

// impactKnown marks an impact with a known value.
const impactKnown = "yes_known"

// Mapper converts records to and from Procore payloads.
type Mapper struct{}

// FromExternal implements transform.Transformer.
func (Mapper) FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error) {
	switch t {
	case record.TypeRFI:
		var rfi RFI
		if err := transform.Decode(ID, t, raw, &rfi); err != nil {
			return record.Record{}, "", err
		}
		return rfi.ToDomainType(), string(rfi.ID), nil
	case record.TypeDailyReport:
		var log DailyLog
		if err := transform.Decode(ID, t, raw, &log); err != nil {
			return record.Record{}, "", err
		}
		return log.ToDomainType(), string(log.ID), nil
	case record.TypeSubmittal:
		var submittal Submittal
		if err := transform.Decode(ID, t, raw, &submittal); err != nil {
			return record.Record{}, "", err
		}
		return submittal.ToDomainType(), string(submittal.ID), nil
	default:
		return record.Record{}, "", transform.Unsupported(ID, t)
	}
}

// ToExternal implements transform.Transformer.
func (Mapper) ToExternal(t record.Type, rec record.Record) (any, error) {
	if t != record.TypeRFI {
		return nil, transform.Unsupported(ID, t)
	}
	if err := transform.Require(ID, rec, record.FieldSubject, record.FieldQuestion); err != nil {
		return nil, err
	}

	input := RFIInput{
		AssigneeID: transform.Atoi(rec.String(record.FieldAssignedTo)),
		DueDate:    transform.Date(rec.String(record.FieldDueDate)),
		Number:     rec.String(record.FieldNumber),
		Question:   rec.String(record.FieldQuestion),
		Subject:    rec.String(record.FieldSubject),
	}
	if rec.Has(record.FieldCostImpact) {
		input.CostImpact = &Impact{Status: impactKnown, Value: rec.Float(record.FieldCostImpact)}
	}
	if rec.Has(record.FieldScheduleImpact) {
		input.ScheduleImpact = &Impact{Status: impactKnown, Value: rec.Float(record.FieldScheduleImpact)}
	}

	return RFIRequest{RFI: input}, nil
}

// ToDomainType converts a DailyLog to a daily report record.
func (d *DailyLog) ToDomainType() record.Record {
	rec := record.New(record.TypeDailyReport, "")
	rec.Set(record.FieldCreatedAt, d.CreatedAt)
	rec.Set(record.FieldDate, transform.Date(d.Date))
	rec.Set(record.FieldNotes, d.Notes)
	rec.Set(record.FieldWeather, d.WeatherConditions)
	rec.Set(record.FieldWorkers, d.Workers)
	return rec
}

// ToDomainType converts an RFI to an RFI record.
func (r *RFI) ToDomainType() record.Record {
	rec := record.New(record.TypeRFI, "")
	rec.Set(record.FieldAssignedTo, "")
	if r.AssignedTo != nil {
		rec.Set(record.FieldAssignedTo, string(r.AssignedTo.ID))
	}
	rec.Set(record.FieldCostImpact, 0.0)
	if r.CostImpact != nil {
		rec.Set(record.FieldCostImpact, r.CostImpact.Value)
	}
	rec.Set(record.FieldCreatedAt, r.CreatedAt)
	rec.Set(record.FieldDueDate, transform.Date(r.DueDate))
	rec.Set(record.FieldNumber, r.Number)
	rec.Set(record.FieldQuestion, r.Question)
	rec.Set(record.FieldScheduleImpact, 0.0)
	if r.ScheduleImpact != nil {
		rec.Set(record.FieldScheduleImpact, r.ScheduleImpact.Value)
	}
	rec.Set(record.FieldStatus, r.Status)
	rec.Set(record.FieldSubject, r.Subject)
	return rec
}

// ToDomainType converts a Submittal to a submittal record.
func (s *Submittal) ToDomainType() record.Record {
	rec := record.New(record.TypeSubmittal, "")
	rec.Set(record.FieldCreatedAt, s.CreatedAt)
	rec.Set(record.FieldDescription, s.Description)
	rec.Set(record.FieldDueDate, transform.Date(s.DueDate))
	rec.Set(record.FieldNumber, s.Number)
	rec.Set(record.FieldRevision, s.Revision)
	rec.Set(record.FieldStatus, "")
	if s.Status != nil {
		rec.Set(record.FieldStatus, s.Status.Name)
	}
	rec.Set(record.FieldSubject, s.Title)
	return rec
}
