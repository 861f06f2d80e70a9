package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func callSign(s string) *string { return &s }

func TestMembershipHelpers(t *testing.T) {
	m := &Member{
		Phone: "+17195550001",
		Departments: MembershipMap{
			"crestone": {Active: true, Admin: true, CallSign: callSign("C-1")},
			"moffat":   {Active: true},
			"saguache": {Active: false, Admin: true},
		},
		Talkgroups: []int64{1001, 1002},
	}

	assert.ElementsMatch(t, []string{"crestone", "moffat"}, m.ActiveDepartments())
	assert.Equal(t, []string{"crestone"}, m.AdminDepartments())

	assert.True(t, m.IsActiveIn("crestone"))
	assert.False(t, m.IsActiveIn("saguache"))
	assert.False(t, m.IsActiveIn("villa-grove"))

	assert.True(t, m.IsAdminIn("crestone"))
	// Admin flag without an active membership does not count.
	assert.False(t, m.IsAdminIn("saguache"))

	assert.True(t, m.SubscribedTo(1001))
	assert.False(t, m.SubscribedTo(1003))

	assert.Equal(t, "C-1", m.CallSignIn("crestone"))
	assert.Equal(t, "", m.CallSignIn("moffat"))
}

func TestDisplayName(t *testing.T) {
	named := &Member{Phone: "+17195550001", FirstName: "Alex", LastName: "Rivera"}
	assert.Equal(t, "Alex Rivera", named.DisplayName())

	firstOnly := &Member{Phone: "+17195550001", FirstName: "Alex"}
	assert.Equal(t, "Alex", firstOnly.DisplayName())

	unnamed := &Member{Phone: "+17195550001"}
	assert.Equal(t, "+17195550001", unnamed.DisplayName())
}

func TestMembershipMapRoundTrip(t *testing.T) {
	m := MembershipMap{
		"crestone": {Active: true, Admin: true, CallSign: callSign("C-1")},
	}

	value, err := m.Value()
	assert.NoError(t, err)

	var decoded MembershipMap
	assert.NoError(t, decoded.Scan(value))
	assert.Equal(t, m, decoded)

	var fromNil MembershipMap
	assert.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)
}

func TestDeliveryMarksNilValue(t *testing.T) {
	var marks DeliveryMarks
	value, err := marks.Value()
	assert.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)
}
