package service

// Task represents a single task item.
type Task struct {
	ID      string
	Content string
	Due     *Due // nil when the task has no due date
}

// Due describes when a task is due.
type Due struct {
	Date        string // YYYY-MM-DD
	String      string // human text, e.g. "every monday"
	IsRecurring bool
	Datetime    string // RFC 3339, empty for all-day tasks
	Timezone    string
}

// Recurring reports whether the task follows a repeating schedule.
func (t Task) Recurring() bool {
	return t.Due != nil && t.Due.IsRecurring
}

// UpdateKind identifies which field of an UpdateRequest is set.
type UpdateKind int

const (
	// KindInvalid marks a request with neither or both fields set.
	KindInvalid UpdateKind = iota

	// KindDate sets the concrete due date only.
	KindDate

	// KindDueString sets the due date from natural-language text.
	KindDueString
)

func (k UpdateKind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindDueString:
		return "due_string"
	default:
		return "invalid"
	}
}

// UpdateRequest changes a task's due date.
// Exactly one of Date or DueString is set.
type UpdateRequest struct {
	Date      string // YYYY-MM-DD, keeps any recurrence rule
	DueString string // e.g. "Today"
}

// PostponeTo returns a request moving only the concrete due date.
func PostponeTo(date string) UpdateRequest {
	return UpdateRequest{Date: date}
}

// DueStringRequest returns a request setting the due date from text.
func DueStringRequest(s string) UpdateRequest {
	return UpdateRequest{DueString: s}
}

// Kind reports which field is set.
func (r UpdateRequest) Kind() UpdateKind {
	switch {
	case r.Date != "" && r.DueString == "":
		return KindDate
	case r.DueString != "" && r.Date == "":
		return KindDueString
	default:
		return KindInvalid
	}
}
