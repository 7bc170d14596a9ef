package complaint

import (
	"strings"

	"hostel/internal/validation"
)

func init() {
	validation.Register("category", func(v string) bool { return Category(v).Valid() })
	validation.Register("priority", func(v string) bool { return Priority(v).Valid() })
}

// Normalize trims free text and applies the default priority.
func (in Input) Normalize() Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.StudentRef = strings.TrimSpace(in.StudentRef)
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.RoomNumber = strings.TrimSpace(in.RoomNumber)
	in.AttachmentURL = strings.TrimSpace(in.AttachmentURL)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	return in
}

// Validate checks a normalized input.
func (in Input) Validate() error {
	if fields := validation.Struct(in); fields != nil {
		return &ValidationError{Fields: fields}
	}
	return nil
}
