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

func newTranscriptionFixture(t *testing.T, members ...*models.Member) (TranscriptionFlow, *fakeMessageRepo, *services.MockMessagingProvider) {
	t.Helper()
	memberRepo := newFakeMemberRepo(members...)
	messageRepo := newFakeMessageRepo()
	provider := services.NewMockMessagingProvider()
	dispatcher := newTestDispatcher(provider)
	resolver := NewRecipientResolver(memberRepo)
	flow := NewTranscriptionFlow(messageRepo, newSampleDirectory(), resolver, NewAuditRecorder(messageRepo), dispatcher, "pages.example.org", quietLogger())
	return flow, messageRepo, provider
}

func TestTranscriptionFollowsPageRecord(t *testing.T) {
	wants := member("+17195550001", map[string]models.Membership{"crestone": {Active: true}}, 1001)
	wants.WantsTranscript = utils.ToPtr(true)
	doesNot := member("+17195550002", map[string]models.Membership{"crestone": {Active: true}}, 1001)

	flow, messageRepo, provider := newTranscriptionFixture(t, wants, doesNot)

	fileKey := "rec-42"
	testMode := false
	pageRecord := &models.MessageRecord{
		MessageKey: utils.UTCNowMillis() - 60000,
		Type:       models.MessageTypePage,
		FileKey:    &fileKey,
		TestMode:   &testMode,
	}
	assert.NoError(t, messageRepo.SetRecord(context.Background(), pageRecord))

	err := flow.HandleTranscription(context.Background(), dto.TranscriptionEvent{
		Action:     dto.ActionTranscription,
		JobID:      "job-7",
		Transcript: "Structure fire at 5th and Main",
		Tags: map[string]string{
			TranscriptionTagFileKey:   fileKey,
			TranscriptionTagTalkgroup: "1001",
		},
	})
	assert.NoError(t, err)

	sends := provider.SendsTo(wants.Phone)
	assert.Len(t, sends, 1)
	assert.Contains(t, sends[0].Request.Body, "FIRE PAGE")
	assert.Contains(t, sends[0].Request.Body, "Structure fire at 5th and Main")
	assert.Contains(t, sends[0].Request.Body, "&cs=%2B17195550001")

	assert.Empty(t, provider.SendsTo(doesNot.Phone))

	assert.Equal(t, 2, messageRepo.recordCount())
}

func TestTranscriptionWithoutPageRecordUsesNotice(t *testing.T) {
	wants := member("+17195550001", map[string]models.Membership{"crestone": {Active: true}}, 1001)
	wants.WantsTranscript = utils.ToPtr(true)

	flow, _, provider := newTranscriptionFixture(t, wants)

	err := flow.HandleTranscription(context.Background(), dto.TranscriptionEvent{
		Action:     dto.ActionTranscription,
		JobID:      "job-8",
		Transcript: "Med call on County Road T",
		Tags: map[string]string{
			TranscriptionTagTalkgroup: "1001",
		},
	})
	assert.NoError(t, err)

	sends := provider.SendsTo(wants.Phone)
	assert.Len(t, sends, 1)
	assert.Contains(t, sends[0].Request.Body, "Transcript for Crestone Fire:")
	assert.Contains(t, sends[0].Request.Body, "Med call on County Road T")
}

func TestTranscriptionMissingTalkgroupTagDropped(t *testing.T) {
	flow, messageRepo, provider := newTranscriptionFixture(t)

	err := flow.HandleTranscription(context.Background(), dto.TranscriptionEvent{
		Action: dto.ActionTranscription,
		JobID:  "job-9",
		Tags:   map[string]string{},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, messageRepo.recordCount())
	assert.Empty(t, provider.Sends())
}
