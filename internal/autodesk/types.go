package autodesk

// Issue is an Autodesk Construction Cloud issue.
type Issue struct {
	// AssignedTo is the assignee's Autodesk user id.
	AssignedTo string `json:"assignedTo,omitempty"`

	// Description is the issue description.
	Description string `json:"description,omitempty"`

	// DueDate is the due date (YYYY-MM-DD).
	DueDate string `json:"dueDate,omitempty"`

	// ID is the issue UUID, absent on create.
	ID string `json:"id,omitempty"`

	// IssueTypeID is the issue type UUID.
	IssueTypeID string `json:"issueTypeId,omitempty"`

	// Location describes where on site the issue is.
	Location *Location `json:"location,omitempty"`

	// Priority is the issue priority.
	Priority string `json:"priority,omitempty"`

	// Status is the issue status, such as open or closed.
	Status string `json:"status,omitempty"`

	// Title is the issue title.
	Title string `json:"title"`

	// UpdatedAt is when the issue last changed.
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Location is a free-text site location.
type Location struct {
	// Description is the location text.
	Description string `json:"description"`
}

// RFI is an Autodesk Construction Cloud RFI.
type RFI struct {
	// AssignedTo is the assignee's Autodesk user id.
	AssignedTo string `json:"assignedTo,omitempty"`

	// CustomAttributes holds the impact values.
	CustomAttributes *RFIAttributes `json:"customAttributes,omitempty"`

	// DueDate is the response due date (YYYY-MM-DD).
	DueDate string `json:"dueDate,omitempty"`

	// ID is the RFI UUID, absent on create.
	ID string `json:"id,omitempty"`

	// Location describes where on site the RFI applies.
	Location *Location `json:"location,omitempty"`

	// Priority is the RFI priority.
	Priority string `json:"priority,omitempty"`

	// Question is the question body.
	Question string `json:"question"`

	// Status is the RFI workflow status.
	Status string `json:"status,omitempty"`

	// Subject is the RFI title.
	Subject string `json:"subject"`
}

// RFIAttributes are the RFI impact attributes.
type RFIAttributes struct {
	// CostImpact is the estimated cost impact.
	CostImpact float64 `json:"costImpact"`

	// ScheduleImpact is the estimated schedule impact in days.
	ScheduleImpact float64 `json:"scheduleImpact"`
}
