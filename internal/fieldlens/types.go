package fieldlens

import "github.com/peteski22/sitebridge/internal/transform"

// Assignee is a Fieldlens user reference.
type Assignee struct {
	// ID is the user identifier.
	ID transform.ID `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`
}

// CustomFields holds the impact values attached to a task.
type CustomFields struct {
	// CostImpact is the estimated cost impact.
	CostImpact float64 `json:"cost_impact"`

	// ScheduleImpact is the estimated schedule impact in days.
	ScheduleImpact float64 `json:"schedule_impact"`
}

// Report is a Fieldlens daily field report.
type Report struct {
	// CrewCount is the number of crew on site.
	CrewCount int `json:"crew_count"`

	// Date is the report date (YYYY-MM-DD).
	Date string `json:"date"`

	// ID is the report identifier, absent on create.
	ID transform.ID `json:"id,omitempty"`

	// Notes holds additional remarks.
	Notes string `json:"notes"`

	// Photos lists photo URLs attached to the report.
	Photos []string `json:"photos"`

	// Title is the report title.
	Title string `json:"title"`

	// Weather describes the site weather.
	Weather string `json:"weather"`

	// WorkPerformed describes the work done.
	WorkPerformed string `json:"work_performed"`
}

// Task is a Fieldlens task as returned by the list endpoint.
type Task struct {
	// Assignee is the assigned user.
	Assignee *Assignee `json:"assignee,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt string `json:"created_at"`

	// Description is the task description.
	Description string `json:"description"`

	// DueDate is the due date.
	DueDate string `json:"due_date"`

	// ID is the task identifier.
	ID transform.ID `json:"id"`

	// Location is the free-text site location.
	Location string `json:"location"`

	// Priority is the task priority.
	Priority string `json:"priority"`

	// Status is the task status.
	Status string `json:"status"`

	// Title is the task title.
	Title string `json:"title"`
}

// TaskInput is the writable subset of a task.
type TaskInput struct {
	// AssigneeID is the assigned user.
	AssigneeID string `json:"assignee_id,omitempty"`

	// CustomFields holds the impact values.
	CustomFields CustomFields `json:"custom_fields"`

	// Description is the task description.
	Description string `json:"description"`

	// DueDate is the due date (YYYY-MM-DD).
	DueDate string `json:"due_date,omitempty"`

	// Location is the free-text site location.
	Location string `json:"location"`

	// Priority is the task priority.
	Priority string `json:"priority"`

	// Title is the task title.
	Title string `json:"title"`
}
