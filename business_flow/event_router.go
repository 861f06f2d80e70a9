package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/metrics"
)

// EventRouter demultiplexes queue events by their action tag to the flow that
// handles them. Decoding is discriminator-first: the envelope picks the
// payload type, and the payload is validated before any handler runs.
type EventRouter struct {
	activation    ActivationFlow
	inbound       InboundFlow
	status        StatusFlow
	announce      AnnounceFlow
	page          PageFlow
	login         LoginFlow
	transcription TranscriptionFlow

	validate *validator.Validate
	logger   *log.Logger
}

func NewEventRouter(
	activation ActivationFlow,
	inbound InboundFlow,
	status StatusFlow,
	announce AnnounceFlow,
	page PageFlow,
	login LoginFlow,
	transcription TranscriptionFlow,
	logger *log.Logger,
) *EventRouter {
	return &EventRouter{
		activation:    activation,
		inbound:       inbound,
		status:        status,
		announce:      announce,
		page:          page,
		login:         login,
		transcription: transcription,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Route decodes and handles one queue event. A nil return means the event is
// finished (handled or deliberately dropped); an error means the whole event
// failed and the transport should redeliver it.
func (r *EventRouter) Route(ctx context.Context, raw []byte) error {
	var envelope dto.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return NewBusinessError("EVENT_DECODE_FAILED", "failed to decode event envelope", err)
	}

	switch envelope.Action {
	case dto.ActionActivate:
		event, err := decodeEvent[dto.ActivateEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.activation.Activate(ctx, event)
	case dto.ActionInboundText:
		event, err := decodeEvent[dto.InboundTextEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.inbound.HandleText(ctx, event)
	case dto.ActionInboundStatus:
		event, err := decodeEvent[dto.InboundStatusEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.status.HandleStatus(ctx, event)
	case dto.ActionAnnounce:
		event, err := decodeEvent[dto.AnnounceEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.announce.Announce(ctx, event)
	case dto.ActionPage:
		event, err := decodeEvent[dto.PageEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.page.Page(ctx, event)
	case dto.ActionLoginCode:
		event, err := decodeEvent[dto.LoginCodeEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.login.SendLoginCode(ctx, event)
	case dto.ActionTranscription:
		event, err := decodeEvent[dto.TranscriptionEvent](r.validate, raw)
		if err != nil {
			return err
		}
		return r.transcription.HandleTranscription(ctx, event)
	default:
		// A producer speaking a newer dialect is a configuration problem,
		// not grounds for a retry storm.
		r.logger.Printf("router: unknown action %q, dropping event", envelope.Action)
		metrics.EventsConsumed.WithLabelValues(envelope.Action, metrics.OutcomeDropped).Inc()
		return nil
	}
}

func decodeEvent[T any](validate *validator.Validate, raw []byte) (T, error) {
	var event T
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, NewBusinessError("EVENT_DECODE_FAILED", "failed to decode event payload", err)
	}
	if err := validate.Struct(event); err != nil {
		return event, NewBusinessError("EVENT_INVALID", fmt.Sprintf("invalid event payload: %v", err), err)
	}
	return event, nil
}
