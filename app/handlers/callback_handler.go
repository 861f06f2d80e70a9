package handlers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
)

// CallbackHandlerInterface defines the contract for provider webhooks
type CallbackHandlerInterface interface {
	Status(c fiber.Ctx) error
	Inbound(c fiber.Ctx) error
}

type CallbackHandler struct {
	publisher services.EventPublisher
	authCode  string
}

func NewCallbackHandler(publisher services.EventPublisher, authCode string) CallbackHandlerInterface {
	return &CallbackHandler{publisher: publisher, authCode: authCode}
}

// Status receives a delivery status callback from the provider. The code
// query parameter was embedded in the callback URL at send time; requests
// missing it are rejected before any parsing.
func (h *CallbackHandler) Status(c fiber.Ctx) error {
	if h.authCode == "" || c.Query("code") != h.authCode {
		return c.Status(fiber.StatusForbidden).SendString("forbidden")
	}

	key, err := strconv.ParseInt(c.Query("key"), 10, 64)
	if err != nil || key <= 0 {
		return c.Status(fiber.StatusBadRequest).SendString("invalid key")
	}

	status, ok := normalizeStatus(c.FormValue("MessageStatus"))
	if !ok {
		// Interim states (queued, sending) carry no new information.
		return c.SendStatus(fiber.StatusNoContent)
	}

	to := c.FormValue("To")
	if to == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing recipient")
	}

	event := dto.NewInboundStatusEvent(uuid.NewString(), key, string(status), to, c.FormValue("From"))
	ctx, cancel := createRequestContext(c, 10*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Println("Status callback publish failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Inbound receives a text sent to one of the configured numbers and enqueues
// it for classification. The empty TwiML body tells the provider not to send
// an automatic reply.
func (h *CallbackHandler) Inbound(c fiber.Ctx) error {
	if h.authCode == "" || c.Query("code") != h.authCode {
		return c.Status(fiber.StatusForbidden).SendString("forbidden")
	}

	from := c.FormValue("From")
	to := c.FormValue("To")
	if from == "" || to == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing parties")
	}

	event := dto.InboundTextEvent{
		Action:    dto.ActionInboundText,
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Body:      c.FormValue("Body"),
		MediaURLs: collectMedia(c),
	}

	ctx, cancel := createRequestContext(c, 10*time.Second)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Println("Inbound callback publish failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}

	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

// normalizeStatus folds the provider's status vocabulary into the statuses
// the feedback loop records. sent passes through so the record's sent list
// gets its mark; queued and sending are dropped.
func normalizeStatus(raw string) (models.DeliveryStatus, bool) {
	switch raw {
	case "sent":
		return models.DeliveryStatusSent, true
	case "delivered":
		return models.DeliveryStatusDelivered, true
	case "undelivered", "failed":
		return models.DeliveryStatusUndelivered, true
	default:
		return "", false
	}
}

func collectMedia(c fiber.Ctx) []string {
	n, err := strconv.Atoi(c.FormValue("NumMedia"))
	if err != nil || n <= 0 {
		return nil
	}
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if u := c.FormValue(fmt.Sprintf("MediaUrl%d", i)); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
