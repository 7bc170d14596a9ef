package complaint

import "time"

// Category groups complaints by the hostel function responsible for them.
type Category string

const (
	CategoryMaintenance Category = "Maintenance"
	CategoryTechnical   Category = "Technical"
	CategoryCleanliness Category = "Cleanliness"
	CategorySecurity    Category = "Security"
	CategoryMess        Category = "Mess"
	CategoryOther       Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMaintenance,
	CategoryTechnical,
	CategoryCleanliness,
	CategorySecurity,
	CategoryMess,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Priority is the urgency a student assigns when submitting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusResolved
}

// Complaint is a student-submitted issue report.
type Complaint struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      Category   `json:"category"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	StudentRef    string     `json:"studentRef"`
	StudentName   string     `json:"studentName"`
	RoomNumber    string     `json:"roomNumber"`
	AttachmentURL string     `json:"attachmentUrl,omitempty"`
	Version       int64      `json:"version"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Input carries the caller-supplied fields of a new complaint.
type Input struct {
	Title         string   `validate:"required,max=200"`
	Description   string   `validate:"required,max=4000"`
	Category      Category `validate:"required,category"`
	Priority      Priority `validate:"omitempty,priority"`
	StudentRef    string   `validate:"required"`
	StudentName   string   `validate:"max=200"`
	RoomNumber    string   `validate:"required"`
	AttachmentURL string   `validate:"omitempty,url"`
}

// Filter narrows a listing. Zero values match everything; Limit 0 means no limit.
type Filter struct {
	Status     Status
	Category   Category
	Priority   Priority
	StudentRef string
	Limit      int
	Offset     int
}

// Match reports whether c passes every set field of the filter.
func (f Filter) Match(c Complaint) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.StudentRef != "" && c.StudentRef != f.StudentRef {
		return false
	}
	return true
}

// Newer orders complaints most recent first, breaking ties by id so that
// repeated listings are stable.
func Newer(a, b Complaint) bool {
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID > b.ID
}

func (c Complaint) clone() Complaint {
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}
