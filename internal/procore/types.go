package procore

import "github.com/peteski22/sitebridge/internal/transform"

// DailyLog represents a Procore daily log entry.
type DailyLog struct {
	// CreatedAt is when the log was created.
	CreatedAt string `json:"created_at,omitempty"`

	// Date is the log date (YYYY-MM-DD).
	Date string `json:"date,omitempty"`

	// ID is the Procore log identifier.
	ID transform.ID `json:"id,omitempty"`

	// Notes is the free-text log body.
	Notes string `json:"notes,omitempty"`

	// WeatherConditions describes the site weather.
	WeatherConditions string `json:"weather_conditions,omitempty"`

	// Workers is the number of workers on site.
	Workers int `json:"workers,omitempty"`
}

// Impact describes the cost or schedule impact of an RFI.
type Impact struct {
	// Status is the impact status, such as "yes_known" or "no_impact".
	Status string `json:"status,omitempty"`

	// Value is the impact amount or number of days.
	Value float64 `json:"value,omitempty"`
}

// Person is a Procore user reference.
type Person struct {
	// ID is the Procore user identifier.
	ID transform.ID `json:"id,omitempty"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`
}

// RFI represents a Procore RFI as returned by the list endpoint.
type RFI struct {
	// AssignedTo is the ball-in-court assignee.
	AssignedTo *Person `json:"assigned_to,omitempty"`

	// CostImpact is the RFI's cost impact.
	CostImpact *Impact `json:"cost_impact,omitempty"`

	// CreatedAt is when the RFI was created.
	CreatedAt string `json:"created_at,omitempty"`

	// CreatedBy is the RFI author.
	CreatedBy *Person `json:"created_by,omitempty"`

	// DueDate is the response due date.
	DueDate string `json:"due_date,omitempty"`

	// ID is the Procore RFI identifier.
	ID transform.ID `json:"id,omitempty"`

	// Number is the project-scoped RFI number.
	Number string `json:"number,omitempty"`

	// Question is the question body.
	Question string `json:"question,omitempty"`

	// ScheduleImpact is the RFI's schedule impact in days.
	ScheduleImpact *Impact `json:"schedule_impact,omitempty"`

	// Status is the RFI workflow status.
	Status string `json:"status,omitempty"`

	// Subject is the RFI title.
	Subject string `json:"subject,omitempty"`
}

// RFIInput is the writable subset of an RFI.
type RFIInput struct {
	// AssigneeID is the Procore user the RFI is assigned to.
	AssigneeID int64 `json:"assignee_id,omitempty"`

	// CostImpact is the RFI's cost impact.
	CostImpact *Impact `json:"cost_impact,omitempty"`

	// DueDate is the response due date (YYYY-MM-DD).
	DueDate string `json:"due_date,omitempty"`

	// Number is the project-scoped RFI number.
	Number string `json:"number,omitempty"`

	// Question is the question body.
	Question string `json:"question"`

	// ScheduleImpact is the RFI's schedule impact in days.
	ScheduleImpact *Impact `json:"schedule_impact,omitempty"`

	// Subject is the RFI title.
	Subject string `json:"subject"`
}

// RFIRequest is the create and update request body.
type RFIRequest struct {
	// RFI is the wrapped RFI payload.
	RFI RFIInput `json:"rfi"`
}

// Submittal represents a Procore submittal.
type Submittal struct {
	// CreatedAt is when the submittal was created.
	CreatedAt string `json:"created_at,omitempty"`

	// Description is the submittal description.
	Description string `json:"description,omitempty"`

	// DueDate is the submittal due date.
	DueDate string `json:"due_date,omitempty"`

	// ID is the Procore submittal identifier.
	ID transform.ID `json:"id,omitempty"`

	// Number is the submittal number.
	Number string `json:"number,omitempty"`

	// Revision is the submittal revision.
	Revision string `json:"revision,omitempty"`

	// Status is the submittal workflow status.
	Status *SubmittalStatus `json:"status,omitempty"`

	// Title is the submittal title.
	Title string `json:"title,omitempty"`
}

// SubmittalStatus is the named status of a submittal.
type SubmittalStatus struct {
	// ID is the status identifier.
	ID transform.ID `json:"id,omitempty"`

	// Name is the status name.
	Name string `json:"name,omitempty"`
}
