package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	testingutil "github.com/tmcarr/heimdall/testing"
)

func newTestDispatcher(provider services.MessagingProvider) *Dispatcher {
	selector := NewIdentitySelector(testDirectory(testingutil.SampleDirectoryJSON()))
	return NewDispatcher(provider, selector, 4, quietLogger())
}

func TestDispatchSendsToAllRecipients(t *testing.T) {
	provider := services.NewMockMessagingProvider()
	dispatcher := newTestDispatcher(provider)

	recipients := []*models.Member{
		member("+17195550001", map[string]models.Membership{"crestone": {Active: true}}),
		member("+17195550002", map[string]models.Membership{"crestone": {Active: true}}),
		member("+17195550003", map[string]models.Membership{"crestone": {Active: true}}),
	}

	dispatcher.Dispatch(context.Background(), DispatchContext{
		Type: models.MessageTypePage,
		Key:  1700000000000,
	}, recipients, func(m *models.Member) string { return "body for " + m.Phone })

	sends := provider.Sends()
	assert.Len(t, sends, 3)
	for _, s := range sends {
		assert.Equal(t, "body for "+s.Request.To, s.Request.Body)
		assert.Equal(t, int64(1700000000000), s.Request.CallbackKey)
		assert.Equal(t, "crestone-page", s.Identity.Name)
	}
}

func TestDispatchIsolatesProviderFailures(t *testing.T) {
	provider := services.NewMockMessagingProvider()
	provider.FailFor("+17195550002", errors.New("blocked by carrier"))
	dispatcher := newTestDispatcher(provider)

	recipients := []*models.Member{
		member("+17195550001", map[string]models.Membership{"crestone": {Active: true}}),
		member("+17195550002", map[string]models.Membership{"crestone": {Active: true}}),
		member("+17195550003", map[string]models.Membership{"crestone": {Active: true}}),
	}

	dispatcher.Dispatch(context.Background(), DispatchContext{
		Type: models.MessageTypePage,
		Key:  1700000000000,
	}, recipients, func(*models.Member) string { return "page body" })

	// The failing recipient was attempted; the siblings still got theirs.
	assert.Len(t, provider.Sends(), 3)
	assert.Len(t, provider.SendsTo("+17195550001"), 1)
	assert.Len(t, provider.SendsTo("+17195550003"), 1)
}

func TestDispatchEmptyRecipients(t *testing.T) {
	provider := services.NewMockMessagingProvider()
	dispatcher := newTestDispatcher(provider)

	dispatcher.Dispatch(context.Background(), DispatchContext{
		Type: models.MessageTypePage,
		Key:  1,
	}, nil, func(*models.Member) string { return "body" })

	assert.Empty(t, provider.Sends())
}
