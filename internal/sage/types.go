package sage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/peteski22/sitebridge/internal/transform"
)

// Amount is a monetary value Sage may encode as a JSON number or a decimal string.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// ChangeOrder is the Sage change order payload.
type ChangeOrder struct {
	// Amount is the change order value.
	Amount Amount `json:"amount"`

	// ChangeOrderNumber is the job-scoped change order number.
	ChangeOrderNumber string `json:"change_order_number"`

	// CostCodes lists the cost codes the change affects.
	CostCodes []string `json:"cost_codes"`

	// DateCreated is the change order date (YYYY-MM-DD).
	DateCreated string `json:"date_created,omitempty"`

	// Description is the change order description.
	Description string `json:"description"`

	// ID is the Sage change order identifier, absent on create.
	ID transform.ID `json:"id,omitempty"`

	// ReasonCode is the change reason.
	ReasonCode string `json:"reason_code,omitempty"`

	// Status is the approval status.
	Status string `json:"status"`
}

// CostCode is a Sage job cost code with budget and actuals.
type CostCode struct {
	// ActualAmount is the cost posted to date.
	ActualAmount Amount `json:"actual_amount"`

	// BudgetedAmount is the budgeted cost.
	BudgetedAmount Amount `json:"budgeted_amount"`

	// Category is the cost category, such as Labor or Material.
	Category string `json:"category"`

	// Code is the cost code identifier.
	Code string `json:"cost_code"`

	// Description is the cost code description.
	Description string `json:"description"`

	// Phase is the job phase.
	Phase string `json:"phase"`

	// UnitOfMeasure is the unit costs are tracked in.
	UnitOfMeasure string `json:"unit_of_measure"`
}

// CostUpdate is a cost posted against a job cost code.
type CostUpdate struct {
	// Amount is the cost amount.
	Amount float64 `json:"amount"`

	// Category is the cost category.
	Category string `json:"category"`

	// CostCode is the cost code the amount is posted to.
	CostCode string `json:"cost_code"`

	// Date is the posting date (YYYY-MM-DD).
	Date string `json:"date,omitempty"`

	// Description is the posting description.
	Description string `json:"description,omitempty"`

	// Phase is the job phase.
	Phase string `json:"phase,omitempty"`
}

// Project is a Sage job.
type Project struct {
	// CompletionDate is the scheduled completion date.
	CompletionDate string `json:"completion_date"`

	// ContractAmount is the contract value.
	ContractAmount Amount `json:"contract_amount"`

	// CustomerID is the owning customer.
	CustomerID string `json:"customer_id"`

	// JobName is the job name.
	JobName string `json:"job_name"`

	// JobNumber is the job identifier.
	JobNumber string `json:"job_number"`

	// ProjectManager is the assigned project manager.
	ProjectManager string `json:"project_manager"`

	// StartDate is the job start date.
	StartDate string `json:"start_date"`

	// Status is the job status.
	Status string `json:"status"`
}
