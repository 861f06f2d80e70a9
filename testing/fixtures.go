package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/lib/pq"

	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomPhone returns a plausible unique E.164 number
func RandomPhone() string {
	return fmt.Sprintf("+1719555%04d", rand.Intn(10000))
}

// CreateTestMember inserts a member active in the given departments
func (tf *TestFixtures) CreateTestMember(departments map[string]models.Membership, talkgroups ...int64) (*models.Member, error) {
	member := &models.Member{
		Phone:       RandomPhone(),
		FirstName:   "Alex",
		LastName:    "Rivera",
		Departments: departments,
		Talkgroups:  pq.Int64Array(talkgroups),
		TestMode:    utils.ToPtr(false),
	}
	if err := tf.DB.DB.Create(member).Error; err != nil {
		return nil, fmt.Errorf("failed to create test member: %w", err)
	}
	return member, nil
}

// CreateTestRecord inserts an audit record for the given message key
func (tf *TestFixtures) CreateTestRecord(key int64, msgType models.MessageType, recipients int) (*models.MessageRecord, error) {
	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           msgType,
		RecipientCount: recipients,
		Body:           "fixture message",
	}
	if err := tf.DB.DB.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create test record: %w", err)
	}
	return record, nil
}

// ActiveMembership builds a plain active membership
func ActiveMembership() models.Membership {
	return models.Membership{Active: true}
}

// AdminMembership builds an active admin membership with a call sign
func AdminMembership(callSign string) models.Membership {
	return models.Membership{Active: true, Admin: true, CallSign: utils.ToPtr(callSign)}
}

// SampleDirectoryJSON returns a directory blob covering one page department,
// one text department, their talkgroups, and three sending identities. It is
// the canonical fixture for secret-source backed tests.
func SampleDirectoryJSON() []byte {
	blob := models.DirectoryBlob{
		Departments: map[string]models.Department{
			"crestone": {
				ID:                "crestone",
				Name:              "Crestone Volunteer Fire Department",
				ShortName:         "CVFD",
				Type:              models.GroupTypePage,
				DefaultTalkgroups: []int64{1001},
				PageIdentity:      "crestone-page",
			},
			"moffat": {
				ID:                "moffat",
				Name:              "Moffat Fire Protection District",
				ShortName:         "MFPD",
				Type:              models.GroupTypeText,
				DefaultTalkgroups: []int64{1002},
				PageIdentity:      "district-page",
				TextIdentity:      "moffat-chat",
			},
		},
		Talkgroups: map[string]models.Talkgroup{
			"1001": {ID: 1001, PartyName: "Crestone Fire", Service: "FIRE", LinkPreset: "saguache"},
			"1002": {ID: 1002, PartyName: "Moffat EMS", Service: "EMS", LinkPreset: "saguache"},
		},
		Identities: map[string]models.SendingIdentity{
			"crestone-page": {
				Name:       "crestone-page",
				Number:     "+17195550100",
				AccountSID: "AC_test_crestone",
				AuthToken:  "token-crestone",
				Type:       models.IdentityTypePage,
				Department: "crestone",
			},
			"moffat-chat": {
				Name:       "moffat-chat",
				Number:     "+17195550101",
				AccountSID: "AC_test_moffat",
				AuthToken:  "token-moffat",
				Type:       models.IdentityTypeChat,
				Department: "moffat",
			},
			"district-page": {
				Name:       "district-page",
				Number:     "+17195550102",
				AccountSID: "AC_test_district",
				AuthToken:  "token-district",
				Type:       models.IdentityTypePage,
			},
		},
	}
	data, err := json.Marshal(blob)
	if err != nil {
		panic(err)
	}
	return data
}
