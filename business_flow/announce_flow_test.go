package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/utils"
)

func newAnnounceFixture(t *testing.T, members ...*models.Member) (AnnounceFlow, *fakeMessageRepo, *services.MockMessagingProvider) {
	t.Helper()
	memberRepo := newFakeMemberRepo(members...)
	messageRepo := newFakeMessageRepo()
	provider := services.NewMockMessagingProvider()
	dispatcher := newTestDispatcher(provider)
	resolver := NewRecipientResolver(memberRepo)
	flow := NewAnnounceFlow(memberRepo, newSampleDirectory(), resolver, NewAuditRecorder(messageRepo), dispatcher, quietLogger())
	return flow, messageRepo, provider
}

func TestAnnounceDepartmentByAdmin(t *testing.T) {
	admin := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true, Admin: true},
	})
	admin.FirstName = "Alex"
	admin.LastName = "Rivera"
	peer := member("+17195550002", map[string]models.Membership{"crestone": {Active: true}})

	flow, messageRepo, provider := newAnnounceFixture(t, admin, peer)

	dept := "crestone"
	err := flow.Announce(context.Background(), dto.AnnounceEvent{
		Action:     dto.ActionAnnounce,
		Sender:     admin.Phone,
		Body:       "burn ban lifted",
		Department: &dept,
	})
	assert.NoError(t, err)

	record := messageRepo.onlyRecord()
	assert.NotNil(t, record)
	assert.Equal(t, models.MessageTypeDepartmentAnnc, record.Type)
	assert.Contains(t, record.Body, "CVFD Announcement: burn ban lifted")
	assert.Equal(t, 2, record.RecipientCount)
	assert.Len(t, provider.SendsTo(peer.Phone), 1)
}

func TestAnnounceDepartmentByNonAdminDropped(t *testing.T) {
	sender := member("+17195550001", map[string]models.Membership{"crestone": {Active: true}})
	flow, messageRepo, provider := newAnnounceFixture(t, sender)

	dept := "crestone"
	err := flow.Announce(context.Background(), dto.AnnounceEvent{
		Action:     dto.ActionAnnounce,
		Sender:     sender.Phone,
		Body:       "I am not an admin",
		Department: &dept,
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, messageRepo.recordCount())
	assert.Empty(t, provider.Sends())
}

func TestAnnounceTalkgroup(t *testing.T) {
	admin := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true, Admin: true},
	}, 1001)
	listener := member("+17195550002", map[string]models.Membership{"moffat": {Active: true}}, 1001)
	other := member("+17195550003", map[string]models.Membership{"moffat": {Active: true}}, 1002)

	flow, messageRepo, provider := newAnnounceFixture(t, admin, listener, other)

	tg := int64(1001)
	err := flow.Announce(context.Background(), dto.AnnounceEvent{
		Action:    dto.ActionAnnounce,
		Sender:    admin.Phone,
		Body:      "repeater maintenance tonight",
		Talkgroup: &tg,
	})
	assert.NoError(t, err)

	record := messageRepo.onlyRecord()
	assert.NotNil(t, record)
	assert.Equal(t, models.MessageTypePageAnnouncement, record.Type)
	assert.Equal(t, 2, record.RecipientCount)
	assert.Len(t, provider.SendsTo(listener.Phone), 1)
	assert.Empty(t, provider.SendsTo(other.Phone))
}

func TestAnnounceDistrictRequiresDistrictAdmin(t *testing.T) {
	districtAdmin := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
	})
	districtAdmin.IsDistrictAdmin = utils.ToPtr(true)
	regular := member("+17195550002", map[string]models.Membership{"moffat": {Active: true}})

	flow, messageRepo, provider := newAnnounceFixture(t, districtAdmin, regular)

	err := flow.Announce(context.Background(), dto.AnnounceEvent{
		Action: dto.ActionAnnounce,
		Sender: regular.Phone,
		Body:   "county-wide drill Saturday",
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, messageRepo.recordCount())

	err = flow.Announce(context.Background(), dto.AnnounceEvent{
		Action: dto.ActionAnnounce,
		Sender: districtAdmin.Phone,
		Body:   "county-wide drill Saturday",
	})
	assert.NoError(t, err)

	record := messageRepo.onlyRecord()
	assert.NotNil(t, record)
	assert.Equal(t, models.MessageTypeAlert, record.Type)
	assert.Equal(t, 2, record.RecipientCount)
	assert.Len(t, provider.SendsTo(regular.Phone), 1)
}
