package handlers

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
)

func newCallbackApp(publisher services.EventPublisher) *fiber.App {
	app := fiber.New()
	h := NewCallbackHandler(publisher, "hunter2")
	app.Post("/callback/status", h.Status)
	app.Post("/callback/inbound", h.Inbound)
	return app
}

func postForm(app *fiber.App, target string, form url.Values) (int, error) {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestStatusCallbackPublishesEvent(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "undelivered")
	form.Set("To", "+17195550001")
	form.Set("From", "+17195550100")

	status, err := postForm(app, "/callback/status?code=hunter2&key=1700000000000", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, status)

	assert.Len(t, publisher.Events, 1)
	event, ok := publisher.Events[0].(dto.InboundStatusEvent)
	assert.True(t, ok)
	assert.Equal(t, dto.ActionInboundStatus, event.Action)
	assert.Equal(t, int64(1700000000000), event.MessageKey)
	assert.Equal(t, "undelivered", event.Status)
	assert.Equal(t, "+17195550001", event.To)
}

func TestStatusCallbackMapsFailedToUndelivered(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "failed")
	form.Set("To", "+17195550001")

	status, err := postForm(app, "/callback/status?code=hunter2&key=42", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Len(t, publisher.Events, 1)
	assert.Equal(t, "undelivered", publisher.Events[0].(dto.InboundStatusEvent).Status)
}

func TestStatusCallbackPublishesSent(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "sent")
	form.Set("To", "+17195550001")

	status, err := postForm(app, "/callback/status?code=hunter2&key=42", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Len(t, publisher.Events, 1)
	assert.Equal(t, "sent", publisher.Events[0].(dto.InboundStatusEvent).Status)
}

func TestStatusCallbackIgnoresInterimStates(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "queued")
	form.Set("To", "+17195550001")

	status, err := postForm(app, "/callback/status?code=hunter2&key=42", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Empty(t, publisher.Events)
}

func TestStatusCallbackRejectsBadAuthCode(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "delivered")
	form.Set("To", "+17195550001")

	status, err := postForm(app, "/callback/status?code=wrong&key=42", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Empty(t, publisher.Events)
}

func TestStatusCallbackRejectsBadKey(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("MessageStatus", "delivered")
	form.Set("To", "+17195550001")

	status, err := postForm(app, "/callback/status?code=hunter2&key=not-a-number", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, publisher.Events)
}

func TestInboundCallbackPublishesTextEvent(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("From", "+17195550001")
	form.Set("To", "+17195550100")
	form.Set("Body", "meeting at 7")
	form.Set("NumMedia", "2")
	form.Set("MediaUrl0", "https://media.example.org/a.jpg")
	form.Set("MediaUrl1", "https://media.example.org/b.jpg")

	status, err := postForm(app, "/callback/inbound?code=hunter2", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, status)

	assert.Len(t, publisher.Events, 1)
	event, ok := publisher.Events[0].(dto.InboundTextEvent)
	assert.True(t, ok)
	assert.Equal(t, dto.ActionInboundText, event.Action)
	assert.Equal(t, "+17195550001", event.From)
	assert.Equal(t, "+17195550100", event.To)
	assert.Equal(t, "meeting at 7", event.Body)
	assert.Len(t, event.MediaURLs, 2)
	assert.NotEmpty(t, event.ID)
}

func TestInboundCallbackRejectsMissingParties(t *testing.T) {
	publisher := &services.MockPublisher{}
	app := newCallbackApp(publisher)

	form := url.Values{}
	form.Set("Body", "hello")

	status, err := postForm(app, "/callback/inbound?code=hunter2", form)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, publisher.Events)
}
