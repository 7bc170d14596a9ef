// Package seed loads demo accounts and complaints for local runs. Nothing in
// the stores depends on it.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hostel/internal/auth"
	"hostel/internal/complaint"
)

type demoAccount struct {
	principal auth.Principal
	password  string
}

var accounts = []demoAccount{
	{auth.Principal{ID: "2021A7PS0001P", Role: auth.RoleStudent, Name: "Arjun Sharma",
		Email: "2021a7ps0001p@pilani.bits-pilani.ac.in", RoomNumber: "A-101"}, "student123"},
	{auth.Principal{ID: "2021A7PS0002P", Role: auth.RoleStudent, Name: "Priya Singh",
		Email: "2021a7ps0002p@pilani.bits-pilani.ac.in", RoomNumber: "B-205"}, "student123"},
	{auth.Principal{ID: "2021A7PS0003P", Role: auth.RoleStudent, Name: "Rajesh Kumar",
		Email: "2021a7ps0003p@pilani.bits-pilani.ac.in", RoomNumber: "C-302"}, "student123"},
	{auth.Principal{ID: "warden", Role: auth.RoleAdmin, Name: "Hostel Office",
		Email: "admin@pilani.bits-pilani.ac.in"}, "admin123"},
}

// Accounts returns the demo directory entries with freshly hashed passwords.
func Accounts() ([]auth.Account, error) {
	out := make([]auth.Account, 0, len(accounts))
	for _, a := range accounts {
		acct, err := auth.NewAccount(a.principal, a.password)
		if err != nil {
			return nil, fmt.Errorf("seed: hash %s: %w", a.principal.Email, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// Complaints returns demo complaints spread over the last few months so the
// trend chart has data. All timestamps are relative to now.
func Complaints(now time.Time) []complaint.Complaint {
	now = now.UTC()
	day := 24 * time.Hour
	at := func(ago time.Duration) time.Time { return now.Add(-ago).Truncate(time.Minute) }
	resolved := func(ago time.Duration) *time.Time { t := at(ago); return &t }

	cs := []complaint.Complaint{
		{ID: "demo-1", Title: "Water Supply Issue", Description: "No water supply in room A-101 since morning",
			Category: complaint.CategoryMaintenance, Priority: complaint.PriorityHigh, Status: complaint.StatusInProgress,
			SubmittedAt: at(6 * time.Hour), StudentRef: "2021A7PS0001P", StudentName: "Arjun Sharma", RoomNumber: "A-101"},
		{ID: "demo-2", Title: "WiFi Connection Problem", Description: "Intermittent WiFi connection in common area",
			Category: complaint.CategoryTechnical, Priority: complaint.PriorityMedium, Status: complaint.StatusResolved,
			SubmittedAt: at(day + 6*time.Hour), ResolvedAt: resolved(12 * time.Hour), StudentRef: "2021A7PS0002P", StudentName: "Priya Singh", RoomNumber: "B-205"},
		{ID: "demo-3", Title: "Mess Food Quality", Description: "Poor quality food served in dinner yesterday",
			Category: complaint.CategoryMess, Priority: complaint.PriorityMedium, Status: complaint.StatusPending,
			SubmittedAt: at(2 * time.Hour), StudentRef: "2021A7PS0003P", StudentName: "Rajesh Kumar", RoomNumber: "C-302"},
		{ID: "demo-4", Title: "Broken Window Latch", Description: "Window in A-101 does not lock",
			Category: complaint.CategorySecurity, Priority: complaint.PriorityHigh, Status: complaint.StatusResolved,
			SubmittedAt: at(35 * day), ResolvedAt: resolved(33 * day), StudentRef: "2021A7PS0001P", StudentName: "Arjun Sharma", RoomNumber: "A-101"},
		{ID: "demo-5", Title: "Corridor Not Cleaned", Description: "Second floor corridor of block B skipped for a week",
			Category: complaint.CategoryCleanliness, Priority: complaint.PriorityLow, Status: complaint.StatusResolved,
			SubmittedAt: at(64 * day), ResolvedAt: resolved(60 * day), StudentRef: "2021A7PS0002P", StudentName: "Priya Singh", RoomNumber: "B-205"},
		{ID: "demo-6", Title: "Ceiling Fan Noise", Description: "Fan makes a grinding noise at full speed",
			Category: complaint.CategoryMaintenance, Priority: complaint.PriorityLow, Status: complaint.StatusPending,
			SubmittedAt: at(95 * day), StudentRef: "2021A7PS0003P", StudentName: "Rajesh Kumar", RoomNumber: "C-302"},
	}
	for i := range cs {
		cs[i].UpdatedAt = cs[i].SubmittedAt
		if cs[i].ResolvedAt != nil {
			cs[i].UpdatedAt = *cs[i].ResolvedAt
		}
	}
	return cs
}

// Load inserts the demo complaints. Ones already present are skipped, so it
// can run on every start against a persistent store.
func Load(ctx context.Context, store complaint.Store, now time.Time) (int, error) {
	n := 0
	for _, c := range Complaints(now) {
		if _, err := store.Insert(ctx, c); err != nil {
			if errors.Is(err, complaint.ErrConflict) {
				continue
			}
			return n, fmt.Errorf("seed: insert %s: %w", c.ID, err)
		}
		n++
	}
	log.Printf("seed: loaded %d demo complaints", n)
	return n, nil
}
