package sage

import (
	"encoding/json"

	"github.com/peteski22/sitebridge/internal/record"
	"github.com/peteski22/sitebridge/internal/transform"
)

const (
	// defaultCategory is the cost category used when a record has none.
	defaultCategory = "Labor"

	// defaultChangeOrderStatus is the status of a change order with none set.
	defaultChangeOrderStatus = "Pending"

	// defaultProjectStatus is the job status when Sage omits one.
	defaultProjectStatus = "Active"
)

// Mapper converts records to and from Sage payloads.
type Mapper struct{}

// FromExternal implements transform.Transformer.
func (Mapper) FromExternal(t record.Type, raw json.RawMessage) (record.Record, string, error) {
	switch t {
	case record.TypeProject:
		var p Project
		if err := transform.Decode(ID, t, raw, &p); err != nil {
			return record.Record{}, "", err
		}
		return p.ToDomainType(), p.JobNumber, nil
	case record.TypeCostCode:
		var c CostCode
		if err := transform.Decode(ID, t, raw, &c); err != nil {
			return record.Record{}, "", err
		}
		return c.ToDomainType(), c.Code, nil
	default:
		return record.Record{}, "", transform.Unsupported(ID, t)
	}
}

// ToExternal implements transform.Transformer.
func (Mapper) ToExternal(t record.Type, rec record.Record) (any, error) {
	switch t {
	case record.TypeChangeOrder:
		if err := transform.Require(ID, rec, record.FieldNumber, record.FieldDescription); err != nil {
			return nil, err
		}
		return changeOrderFromRecord(rec), nil
	case record.TypeCostCode:
		if err := transform.Require(ID, rec, record.FieldCode); err != nil {
			return nil, err
		}
		return costUpdateFromRecord(rec), nil
	default:
		return nil, transform.Unsupported(ID, t)
	}
}

// ToDomainType converts a CostCode to a cost code record.
func (c *CostCode) ToDomainType() record.Record {
	rec := record.New(record.TypeCostCode, "")
	rec.Set(record.FieldActualAmount, float64(c.ActualAmount))
	rec.Set(record.FieldBudgetedAmount, float64(c.BudgetedAmount))
	rec.Set(record.FieldCategory, c.Category)
	rec.Set(record.FieldCode, c.Code)
	rec.Set(record.FieldDescription, c.Description)
	rec.Set(record.FieldPhase, c.Phase)
	rec.Set(record.FieldUnitOfMeasure, c.UnitOfMeasure)
	return rec
}

// ToDomainType converts a Project to a project record.
func (p *Project) ToDomainType() record.Record {
	status := p.Status
	if status == "" {
		status = defaultProjectStatus
	}

	rec := record.New(record.TypeProject, "")
	rec.Set(record.FieldCode, p.JobNumber)
	rec.Set(record.FieldCompletionDate, transform.Date(p.CompletionDate))
	rec.Set(record.FieldContractAmount, float64(p.ContractAmount))
	rec.Set(record.FieldManager, p.ProjectManager)
	rec.Set(record.FieldName, p.JobName)
	rec.Set(record.FieldStartDate, transform.Date(p.StartDate))
	rec.Set(record.FieldStatus, status)
	return rec
}

// changeOrderFromRecord builds a change order payload.
func changeOrderFromRecord(rec record.Record) ChangeOrder {
	status := rec.String(record.FieldStatus)
	if status == "" {
		status = defaultChangeOrderStatus
	}
	costCodes := rec.Strings(record.FieldCostCodes)
	if costCodes == nil {
		costCodes = []string{}
	}

	return ChangeOrder{
		Amount:            Amount(rec.Float(record.FieldAmount)),
		ChangeOrderNumber: rec.String(record.FieldNumber),
		CostCodes:         costCodes,
		DateCreated:       transform.Date(rec.String(record.FieldCreatedAt)),
		Description:       rec.String(record.FieldDescription),
		ReasonCode:        rec.String(record.FieldReason),
		Status:            status,
	}
}

// costUpdateFromRecord builds a cost posting payload. The posted amount falls back to the actual amount.
func costUpdateFromRecord(rec record.Record) CostUpdate {
	category := rec.String(record.FieldCategory)
	if category == "" {
		category = defaultCategory
	}
	amount := rec.Float(record.FieldAmount)
	if !rec.Has(record.FieldAmount) {
		amount = rec.Float(record.FieldActualAmount)
	}

	return CostUpdate{
		Amount:      amount,
		Category:    category,
		CostCode:    rec.String(record.FieldCode),
		Date:        transform.Date(rec.String(record.FieldDate)),
		Description: rec.String(record.FieldDescription),
		Phase:       rec.String(record.FieldPhase),
	}
}
