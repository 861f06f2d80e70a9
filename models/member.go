// Package models contains domain entities and business models for the paging engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DeliveryStatus enumerates the provider-reported state of an outbound message
type DeliveryStatus string

const (
	DeliveryStatusSent        DeliveryStatus = "sent"
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
)

// Membership describes one member's standing within a single department
type Membership struct {
	Active   bool    `json:"active"`
	Admin    bool    `json:"admin"`
	CallSign *string `json:"call_sign,omitempty"`
}

// MembershipMap maps department ID to membership, stored as a jsonb column
type MembershipMap map[string]Membership

func (m MembershipMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *MembershipMap) Scan(src any) error {
	if src == nil {
		*m = MembershipMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MembershipMap", src)
	}
	return json.Unmarshal(data, m)
}

// Member represents a subscribed responder, keyed by phone number
type Member struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Phone string `gorm:"size:20;not null;uniqueIndex:uk_members_phone" json:"phone"`

	FirstName string `gorm:"size:100" json:"first_name"`
	LastName  string `gorm:"size:100" json:"last_name"`

	Departments MembershipMap `gorm:"type:jsonb;not null;default:'{}'" json:"departments"`
	Talkgroups  pq.Int64Array `gorm:"type:bigint[]" json:"talkgroups"`

	// IdentityPreference names the sending identity a multi-department
	// member prefers outbound texts to come from.
	IdentityPreference *string `gorm:"size:64" json:"identity_preference,omitempty"`

	WantsTranscript *bool `gorm:"default:false" json:"wants_transcript"`
	WantsAPIAlerts  *bool `gorm:"default:false" json:"wants_api_alerts"`
	WantsVHFAlerts  *bool `gorm:"default:false" json:"wants_vhf_alerts"`
	WantsDTRAlerts  *bool `gorm:"default:false" json:"wants_dtr_alerts"`

	IsDistrictAdmin *bool `gorm:"default:false;index:idx_members_district_admin" json:"is_district_admin"`
	TestMode        *bool `gorm:"default:false;index:idx_members_test_mode" json:"test_mode"`

	// PendingLoginCode holds an unconsumed one-time code; cleared on activation.
	PendingLoginCode *string `gorm:"size:12" json:"pending_login_code,omitempty"`

	FailCount  int             `gorm:"not null;default:0" json:"fail_count"`
	LastStatus *DeliveryStatus `gorm:"size:20" json:"last_status,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_members_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Member) TableName() string { return "members" }

// MemberFilter represents filter criteria for member queries
type MemberFilter struct {
	ID              *uint
	Phone           *string
	TestMode        *bool
	IsDistrictAdmin *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

// ActiveDepartments returns the IDs of departments where the member is active
func (m *Member) ActiveDepartments() []string {
	var out []string
	for id, ms := range m.Departments {
		if ms.Active {
			out = append(out, id)
		}
	}
	return out
}

// AdminDepartments returns the IDs of departments where the member is an active admin
func (m *Member) AdminDepartments() []string {
	var out []string
	for id, ms := range m.Departments {
		if ms.Active && ms.Admin {
			out = append(out, id)
		}
	}
	return out
}

// IsActiveIn reports whether the member is active in the given department
func (m *Member) IsActiveIn(department string) bool {
	ms, ok := m.Departments[department]
	return ok && ms.Active
}

// IsAdminIn reports whether the member is an active admin of the given department
func (m *Member) IsAdminIn(department string) bool {
	ms, ok := m.Departments[department]
	return ok && ms.Active && ms.Admin
}

// SubscribedTo reports whether the member subscribes to the given talkgroup
func (m *Member) SubscribedTo(talkgroup int64) bool {
	for _, tg := range m.Talkgroups {
		if tg == talkgroup {
			return true
		}
	}
	return false
}

// CallSignIn returns the member's call sign for a department, empty when unset
func (m *Member) CallSignIn(department string) string {
	if ms, ok := m.Departments[department]; ok && ms.CallSign != nil {
		return *ms.CallSign
	}
	return ""
}

// DisplayName returns the member's human-readable name, falling back to the phone
func (m *Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Phone
	}
	return name
}
