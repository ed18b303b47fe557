package plangrid

// CustomFields holds the impact values attached to an issue.
type CustomFields struct {
	// CostImpact is the estimated cost impact.
	CostImpact float64 `json:"cost_impact"`

	// ScheduleImpact is the estimated schedule impact in days.
	ScheduleImpact float64 `json:"schedule_impact"`
}

// Issue is a PlanGrid issue as returned by the list endpoint.
type Issue struct {
	// Assignee is the assigned user.
	Assignee *User `json:"assignee,omitempty"`

	// CreatedAt is when the issue was created.
	CreatedAt string `json:"created_at"`

	// CustomFields holds the impact values.
	CustomFields *CustomFields `json:"custom_fields,omitempty"`

	// Description is the issue description.
	Description string `json:"description"`

	// DueDate is the due date.
	DueDate string `json:"due_date"`

	// ID is the issue UID.
	ID string `json:"id"`

	// Location pins the issue to a sheet.
	Location *Location `json:"location,omitempty"`

	// Priority is the issue priority.
	Priority string `json:"priority"`

	// Status is the issue status.
	Status string `json:"status"`

	// Title is the issue title.
	Title string `json:"title"`
}

// IssueInput is the writable subset of an issue.
type IssueInput struct {
	// AssigneeID is the assigned user UID.
	AssigneeID string `json:"assignee_id,omitempty"`

	// CustomFields holds the impact values.
	CustomFields CustomFields `json:"custom_fields"`

	// Description is the issue description.
	Description string `json:"description"`

	// DueDate is the due date (YYYY-MM-DD).
	DueDate string `json:"due_date,omitempty"`

	// Location pins the issue to a sheet.
	Location Location `json:"location"`

	// Priority is the issue priority.
	Priority string `json:"priority"`

	// Title is the issue title.
	Title string `json:"title"`
}

// Location is a position on a sheet.
type Location struct {
	// SheetID is the sheet the issue is pinned to.
	SheetID string `json:"sheet_id"`

	// X is the horizontal position on the sheet.
	X float64 `json:"x"`

	// Y is the vertical position on the sheet.
	Y float64 `json:"y"`
}

// Sheet is a PlanGrid drawing sheet.
type Sheet struct {
	// Discipline is the drawing discipline.
	Discipline string `json:"discipline"`

	// ID is the sheet UID.
	ID string `json:"id"`

	// Name is the sheet name.
	Name string `json:"name"`

	// Number is the sheet number.
	Number string `json:"number"`

	// Revision is the sheet revision.
	Revision string `json:"revision"`

	// Status is the sheet status.
	Status string `json:"status"`

	// UploadedAt is when the sheet version was uploaded.
	UploadedAt string `json:"uploaded_at"`
}

// User is a PlanGrid user reference.
type User struct {
	// ID is the user UID.
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`
}
