package businessflow

import (
	"context"
	"log"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/metrics"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// StatusFlow is the delivery-status feedback loop: it folds asynchronous
// provider callbacks into the audit record's outcome lists and the member's
// consecutive-failure counter, and raises escalation alerts at the
// configured failure thresholds
type StatusFlow interface {
	HandleStatus(ctx context.Context, event dto.InboundStatusEvent) error
}

// StatusFlowImpl implements the delivery-status feedback loop
type StatusFlowImpl struct {
	memberRepo      repository.MemberRepository
	messageRepo     repository.MessageRepository
	recorder        *AuditRecorder
	dispatcher      *Dispatcher
	escalationEvery int
	logger          *log.Logger
}

func NewStatusFlow(
	memberRepo repository.MemberRepository,
	messageRepo repository.MessageRepository,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	escalationEvery int,
	logger *log.Logger,
) StatusFlow {
	if escalationEvery <= 0 {
		escalationEvery = 10
	}
	return &StatusFlowImpl{
		memberRepo:      memberRepo,
		messageRepo:     messageRepo,
		recorder:        recorder,
		dispatcher:      dispatcher,
		escalationEvery: escalationEvery,
		logger:          logger,
	}
}

// HandleStatus processes one provider status callback. Outcome appends are
// additive and tolerate duplicate callbacks; the counter update and the
// append are separate writes, so concurrent callbacks for the same member can
// under-count failures. That window is pre-existing behavior, kept on purpose.
func (f *StatusFlowImpl) HandleStatus(ctx context.Context, event dto.InboundStatusEvent) error {
	status := models.DeliveryStatus(event.Status)
	switch status {
	case models.DeliveryStatusSent, models.DeliveryStatusDelivered, models.DeliveryStatusUndelivered:
	default:
		f.logger.Printf("status: unknown delivery status %q for message %d, dropping", event.Status, event.MessageKey)
		return nil
	}

	now := utils.UTCNow()
	err := f.messageRepo.AppendOutcome(ctx, event.MessageKey, status, models.DeliveryMark{
		Time:  now,
		Phone: event.To,
	})
	if err != nil {
		return err
	}

	count, err := f.memberRepo.ApplyDeliveryOutcome(ctx, event.To, status)
	if err != nil {
		return err
	}

	metrics.DeliveryLatency.WithLabelValues(string(status)).
		Observe(now.Sub(utils.MillisToTime(event.MessageKey)).Seconds())

	if status == models.DeliveryStatusUndelivered && count > 0 && count%f.escalationEvery == 0 {
		return f.escalate(ctx, event.To, count)
	}
	return nil
}

// escalate alerts every admin of every department the failing member belongs
// to, naming the member and the failure count
func (f *StatusFlowImpl) escalate(ctx context.Context, phone string, count int) error {
	member, err := f.memberRepo.ByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if member == nil {
		f.logger.Printf("status: escalation for unknown member %s, dropping", phone)
		return nil
	}

	admins, err := f.adminsFor(ctx, member)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		f.logger.Printf("status: no admins to escalate to for %s", phone)
		return nil
	}

	body := ComposeEscalation(member.DisplayName(), member.Phone, count)
	key := utils.UTCNowMillis()

	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           models.MessageTypeDepartmentAlert,
		RecipientCount: len(admins),
		Body:           body,
		TestMode:       member.TestMode,
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type: models.MessageTypeDepartmentAlert,
		Key:  key,
	}, admins, func(*models.Member) string { return body })

	metrics.EscalationsRaised.Inc()
	return nil
}

// adminsFor collects the distinct admins across every department the member
// belongs to
func (f *StatusFlowImpl) adminsFor(ctx context.Context, member *models.Member) ([]*models.Member, error) {
	seen := make(map[string]bool)
	var admins []*models.Member
	for dept := range member.Departments {
		candidates, err := f.memberRepo.ActiveInDepartment(ctx, dept)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if c.IsAdminIn(dept) && c.Phone != member.Phone && !seen[c.Phone] {
				seen[c.Phone] = true
				admins = append(admins, c)
			}
		}
	}
	return admins, nil
}
