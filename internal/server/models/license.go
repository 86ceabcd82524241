package models

import "time"

type LicenseStatus string

const (
	LicenseStatusPending  LicenseStatus = "pending"
	LicenseStatusApproved LicenseStatus = "approved"
	LicenseStatusRejected LicenseStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusPending, LicenseStatusApproved, LicenseStatusRejected:
		return true
	}
	return false
}

const (
	LicenseTypeFront = "front"
	LicenseTypeBack  = "back"
)

// ValidLicenseType reports whether t names a license side.
func ValidLicenseType(t string) bool {
	return t == LicenseTypeFront || t == LicenseTypeBack
}

// License is one uploaded image of a driver license side.
type License struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	FileName    string        `json:"file_name"`
	FileURL     string        `json:"file_url"`
	FileSize    int64         `json:"file_size"`
	ContentType string        `json:"content_type"`
	LicenseType string        `json:"license_type"`
	Status      LicenseStatus `json:"status"`
	AdminNotes  *string       `json:"admin_notes"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// LicenseWithUser pairs a license with its owner for the admin listing.
type LicenseWithUser struct {
	License
	User User `json:"user"`
}

// UserLicenses is the per-user view of the admin review queue.
type UserLicenses struct {
	User       User          `json:"user"`
	Licenses   []License     `json:"licenses"`
	Status     LicenseStatus `json:"status"`
	AdminNotes *string       `json:"admin_notes"`
}

// AggregateStatus folds the statuses of a user's licenses: any rejection
// wins, then any approval, otherwise pending.
func AggregateStatus(licenses []License) LicenseStatus {
	status := LicenseStatusPending
	for _, l := range licenses {
		switch l.Status {
		case LicenseStatusRejected:
			return LicenseStatusRejected
		case LicenseStatusApproved:
			status = LicenseStatusApproved
		}
	}
	return status
}

// LatestNotes returns the admin notes of the most recently updated license
// that has notes, or nil.
func LatestNotes(licenses []License) *string {
	var (
		notes  *string
		latest time.Time
	)
	for _, l := range licenses {
		if l.AdminNotes == nil {
			continue
		}
		if notes == nil || l.UpdatedAt.After(latest) {
			notes = l.AdminNotes
			latest = l.UpdatedAt
		}
	}
	return notes
}

// GroupByUser groups licenses by owner, keeping users in first-seen order.
func GroupByUser(items []LicenseWithUser) []UserLicenses {
	index := make(map[string]int)
	var out []UserLicenses
	for _, it := range items {
		i, ok := index[it.User.ID]
		if !ok {
			i = len(out)
			index[it.User.ID] = i
			out = append(out, UserLicenses{User: it.User})
		}
		out[i].Licenses = append(out[i].Licenses, it.License)
	}
	for i := range out {
		out[i].Status = AggregateStatus(out[i].Licenses)
		out[i].AdminNotes = LatestNotes(out[i].Licenses)
	}
	return out
}
