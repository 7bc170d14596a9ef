// Package analytics computes read-only dashboard projections over complaints.
package analytics

import (
	"sort"
	"time"

	"hostel/internal/complaint"
)

// CountsByStatus counts complaints per status. Every status is present.
func CountsByStatus(cs []complaint.Complaint) map[complaint.Status]int {
	out := make(map[complaint.Status]int, len(complaint.Statuses))
	for _, s := range complaint.Statuses {
		out[s] = 0
	}
	for _, c := range cs {
		out[c.Status]++
	}
	return out
}

// CountsByCategory counts complaints per category. Every category is present.
func CountsByCategory(cs []complaint.Complaint) map[complaint.Category]int {
	out := make(map[complaint.Category]int, len(complaint.Categories))
	for _, cat := range complaint.Categories {
		out[cat] = 0
	}
	for _, c := range cs {
		out[c.Category]++
	}
	return out
}

// StudentCount is the number of complaints a student has filed.
type StudentCount struct {
	StudentRef  string `json:"studentRef"`
	StudentName string `json:"studentName"`
	RoomNumber  string `json:"roomNumber"`
	Total       int    `json:"total"`
	Open        int    `json:"open"`
}

// CountsByStudent groups complaints by submitter, busiest first.
func CountsByStudent(cs []complaint.Complaint) []StudentCount {
	idx := map[string]int{}
	out := []StudentCount{}
	for _, c := range cs {
		i, ok := idx[c.StudentRef]
		if !ok {
			i = len(out)
			idx[c.StudentRef] = i
			out = append(out, StudentCount{StudentRef: c.StudentRef})
		}
		// listings are newest first, so the first non-empty value is the latest
		if out[i].StudentName == "" {
			out[i].StudentName = c.StudentName
		}
		if out[i].RoomNumber == "" {
			out[i].RoomNumber = c.RoomNumber
		}
		out[i].Total++
		if c.Status != complaint.StatusResolved {
			out[i].Open++
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].StudentRef < out[j].StudentRef
	})
	return out
}

// MonthPoint is one bucket of the monthly trend.
type MonthPoint struct {
	Period    string `json:"period"`
	Submitted int    `json:"submittedCount"`
	Resolved  int    `json:"resolvedCount"`
}

// MonthlyTrend buckets submissions by the calendar month of SubmittedAt and
// resolutions by the month of ResolvedAt, over the window months ending with
// the month containing now. Buckets are ascending and zero-filled.
func MonthlyTrend(cs []complaint.Complaint, window int, now time.Time) []MonthPoint {
	if window <= 0 {
		return []MonthPoint{}
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(window - 1), 0)

	out := make([]MonthPoint, window)
	idx := make(map[string]int, window)
	for i := range out {
		label := first.AddDate(0, i, 0).Format("2006-01")
		out[i].Period = label
		idx[label] = i
	}
	for _, c := range cs {
		if i, ok := idx[c.SubmittedAt.UTC().Format("2006-01")]; ok {
			out[i].Submitted++
		}
		if c.ResolvedAt != nil {
			if i, ok := idx[c.ResolvedAt.UTC().Format("2006-01")]; ok {
				out[i].Resolved++
			}
		}
	}
	return out
}

// Summary is the admin dashboard payload.
type Summary struct {
	Total      int                        `json:"total"`
	ByStatus   map[complaint.Status]int   `json:"byStatus"`
	ByCategory map[complaint.Category]int `json:"byCategory"`
	Trend      []MonthPoint               `json:"monthlyTrend"`
	ByStudent  []StudentCount             `json:"byStudent"`
	Generated  time.Time                  `json:"generatedAt"`
}

// Summarize builds every projection from one snapshot.
func Summarize(cs []complaint.Complaint, window int, now time.Time) Summary {
	return Summary{
		Total:      len(cs),
		ByStatus:   CountsByStatus(cs),
		ByCategory: CountsByCategory(cs),
		Trend:      MonthlyTrend(cs, window, now),
		ByStudent:  CountsByStudent(cs),
		Generated:  now.UTC(),
	}
}

// StudentSummary is the student dashboard payload.
type StudentSummary struct {
	Total    int                      `json:"total"`
	ByStatus map[complaint.Status]int `json:"byStatus"`
}
