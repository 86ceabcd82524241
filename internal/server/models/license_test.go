package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []LicenseStatus
		want     LicenseStatus
	}{
		{"empty", nil, LicenseStatusPending},
		{"all pending", []LicenseStatus{LicenseStatusPending, LicenseStatusPending}, LicenseStatusPending},
		{"approved and pending", []LicenseStatus{LicenseStatusPending, LicenseStatusApproved}, LicenseStatusApproved},
		{"rejected wins", []LicenseStatus{LicenseStatusApproved, LicenseStatusRejected, LicenseStatusPending}, LicenseStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ls []License
			for _, s := range tt.statuses {
				ls = append(ls, License{Status: s})
			}
			assert.Equal(t, tt.want, AggregateStatus(ls))
		})
	}
}

func TestLatestNotes(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ls := []License{
		{AdminNotes: strPtr("old"), UpdatedAt: base},
		{AdminNotes: nil, UpdatedAt: base.Add(2 * time.Hour)},
		{AdminNotes: strPtr("new"), UpdatedAt: base.Add(time.Hour)},
	}

	got := LatestNotes(ls)
	require.NotNil(t, got)
	assert.Equal(t, "new", *got)

	assert.Nil(t, LatestNotes([]License{{}}))
}

func TestGroupByUser_KeepsFirstSeenOrder(t *testing.T) {
	a := User{ID: "a", Email: "a@example.com"}
	b := User{ID: "b", Email: "b@example.com"}

	items := []LicenseWithUser{
		{License: License{ID: "1", UserID: "b", Status: LicenseStatusApproved}, User: b},
		{License: License{ID: "2", UserID: "a", Status: LicenseStatusPending}, User: a},
		{License: License{ID: "3", UserID: "b", Status: LicenseStatusRejected, AdminNotes: strPtr("blurry")}, User: b},
	}

	got := GroupByUser(items)
	require.Len(t, got, 2)

	assert.Equal(t, "b", got[0].User.ID)
	assert.Len(t, got[0].Licenses, 2)
	assert.Equal(t, LicenseStatusRejected, got[0].Status)
	require.NotNil(t, got[0].AdminNotes)
	assert.Equal(t, "blurry", *got[0].AdminNotes)

	assert.Equal(t, "a", got[1].User.ID)
	assert.Equal(t, LicenseStatusPending, got[1].Status)
	assert.Nil(t, got[1].AdminNotes)
}

func TestStatusAndTypeValidation(t *testing.T) {
	assert.True(t, LicenseStatusApproved.Valid())
	assert.False(t, LicenseStatus("archived").Valid())
	assert.True(t, ValidLicenseType("front"))
	assert.True(t, ValidLicenseType("back"))
	assert.False(t, ValidLicenseType("side"))
}
