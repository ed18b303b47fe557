package record

// Internal field names shared by all providers' mappers.
const (
	FieldActualAmount   = "actual_amount"
	FieldAmount         = "amount"
	FieldAssignedTo     = "assigned_to"
	FieldBudgetedAmount = "budgeted_amount"
	FieldCategory       = "category"
	FieldCode           = "code"
	FieldCompletionDate = "completion_date"
	FieldContractAmount = "contract_amount"
	FieldCostCodes      = "cost_codes"
	FieldCostImpact     = "cost_impact"
	FieldCreatedAt      = "created_at"
	FieldDate           = "date"
	FieldDescription    = "description"
	FieldDiscipline     = "discipline"
	FieldDueDate        = "due_date"
	FieldIssueType      = "issue_type"
	FieldLocation       = "location"
	FieldLocationX      = "location_x"
	FieldLocationY      = "location_y"
	FieldManager        = "project_manager"
	FieldName           = "name"
	FieldNotes          = "notes"
	FieldNumber         = "number"
	FieldPhase          = "phase"
	FieldPhotos         = "photos"
	FieldPriority       = "priority"
	FieldQuestion       = "question"
	FieldReason         = "reason"
	FieldRevision       = "revision"
	FieldScheduleImpact = "schedule_impact"
	FieldSheetID        = "sheet_id"
	FieldStartDate      = "start_date"
	FieldStatus         = "status"
	FieldSubject        = "subject"
	FieldUnitOfMeasure  = "unit_of_measure"
	FieldWeather        = "weather"
	FieldWorkPerformed  = "work_performed"
	FieldWorkers        = "workers"
)
