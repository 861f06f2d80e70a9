package businessflow

import (
	"context"
	"log"
	"strconv"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// ActivationFlow handles account activation events: it marks the membership
// active, composes the welcome message, records the audit entry, and sends
// the welcome text
type ActivationFlow interface {
	Activate(ctx context.Context, event dto.ActivateEvent) error
}

// ActivationFlowImpl implements the activation business flow
type ActivationFlowImpl struct {
	memberRepo repository.MemberRepository
	directory  *services.Directory
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	logger     *log.Logger
}

func NewActivationFlow(
	memberRepo repository.MemberRepository,
	directory *services.Directory,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	logger *log.Logger,
) ActivationFlow {
	return &ActivationFlowImpl{
		memberRepo: memberRepo,
		directory:  directory,
		recorder:   recorder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Activate processes one activation event. Unknown members or departments are
// configuration errors: logged and dropped, never retried.
func (f *ActivationFlowImpl) Activate(ctx context.Context, event dto.ActivateEvent) error {
	dept, err := f.directory.Department(ctx, event.Department)
	if err != nil {
		return err
	}
	if dept == nil {
		f.logger.Printf("activation: department %s is not configured, dropping event for %s", event.Department, event.Phone)
		return nil
	}

	member, err := f.memberRepo.Activate(ctx, event.Phone, event.Department)
	if err != nil {
		return err
	}
	if member == nil {
		f.logger.Printf("activation: no membership for %s in %s, dropping event", event.Phone, event.Department)
		return nil
	}

	body := ComposeWelcome(*dept, f.pagedParties(ctx, member))

	key := utils.UTCNowMillis()
	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           models.MessageTypeAccount,
		RecipientCount: 1,
		Body:           body,
		Department:     &dept.ID,
		TestMode:       member.TestMode,
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type: models.MessageTypeAccount,
		Key:  key,
	}, []*models.Member{member}, func(*models.Member) string { return body })

	return nil
}

// pagedParties maps the member's subscribed talkgroups to party names for the
// "you will receive pages for" welcome line
func (f *ActivationFlowImpl) pagedParties(ctx context.Context, member *models.Member) []string {
	var parties []string
	for _, tgID := range member.Talkgroups {
		tg, err := f.directory.Talkgroup(ctx, tgID)
		if err != nil || tg == nil {
			f.logger.Printf("activation: talkgroup %s is not configured", strconv.FormatInt(tgID, 10))
			continue
		}
		parties = append(parties, tg.PartyName)
	}
	return parties
}
