package businessflow

import (
	"context"
	"log"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// AnnounceFlow handles API-originated administrative announcements: scoped to
// one department, one talkgroup, or district-wide
type AnnounceFlow interface {
	Announce(ctx context.Context, event dto.AnnounceEvent) error
}

// AnnounceFlowImpl implements the announcement business flow
type AnnounceFlowImpl struct {
	memberRepo repository.MemberRepository
	directory  *services.Directory
	resolver   *RecipientResolver
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	logger     *log.Logger
}

func NewAnnounceFlow(
	memberRepo repository.MemberRepository,
	directory *services.Directory,
	resolver *RecipientResolver,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	logger *log.Logger,
) AnnounceFlow {
	return &AnnounceFlowImpl{
		memberRepo: memberRepo,
		directory:  directory,
		resolver:   resolver,
		recorder:   recorder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Announce processes one announcement event. The HTTP surface validated the
// request shape; authorization against the sender's role is re-checked here
// because queue events can be replayed.
func (f *AnnounceFlowImpl) Announce(ctx context.Context, event dto.AnnounceEvent) error {
	sender, err := f.memberRepo.ByPhone(ctx, event.Sender)
	if err != nil {
		return err
	}
	if sender == nil {
		f.logger.Printf("announce: unknown sender %s, dropping", event.Sender)
		return nil
	}

	switch {
	case event.Department != nil:
		return f.announceDepartment(ctx, sender, event)
	case event.Talkgroup != nil:
		return f.announceTalkgroup(ctx, sender, event)
	default:
		return f.announceDistrict(ctx, sender, event)
	}
}

func (f *AnnounceFlowImpl) announceDepartment(ctx context.Context, sender *models.Member, event dto.AnnounceEvent) error {
	deptID := *event.Department
	if !sender.IsAdminIn(deptID) && !utils.IsTrue(sender.IsDistrictAdmin) {
		f.logger.Printf("announce: %s is not an admin of %s, dropping", sender.Phone, deptID)
		return nil
	}
	dept, err := f.directory.Department(ctx, deptID)
	if err != nil {
		return err
	}
	if dept == nil {
		f.logger.Printf("announce: department %s is not configured, dropping", deptID)
		return nil
	}

	body := ComposeDepartmentText(*dept, event.Body, sender.DisplayName(), sender.CallSignIn(deptID), true)
	recipients, err := f.resolver.Resolve(ctx, deptID, nil, event.Test)
	if err != nil {
		return err
	}
	return f.send(ctx, models.MessageTypeDepartmentAnnc, body, recipients, &deptID, nil, event.Test)
}

func (f *AnnounceFlowImpl) announceTalkgroup(ctx context.Context, sender *models.Member, event dto.AnnounceEvent) error {
	if !utils.IsTrue(sender.IsDistrictAdmin) && len(sender.AdminDepartments()) == 0 {
		f.logger.Printf("announce: %s cannot announce to talkgroups, dropping", sender.Phone)
		return nil
	}
	tg, err := f.directory.Talkgroup(ctx, *event.Talkgroup)
	if err != nil {
		return err
	}
	if tg == nil {
		f.logger.Printf("announce: talkgroup %d is not configured, dropping", *event.Talkgroup)
		return nil
	}

	recipients, err := f.resolver.Resolve(ctx, ScopeAll, event.Talkgroup, event.Test)
	if err != nil {
		return err
	}
	return f.send(ctx, models.MessageTypePageAnnouncement, event.Body, recipients, nil, event.Talkgroup, event.Test)
}

func (f *AnnounceFlowImpl) announceDistrict(ctx context.Context, sender *models.Member, event dto.AnnounceEvent) error {
	if !utils.IsTrue(sender.IsDistrictAdmin) {
		f.logger.Printf("announce: %s is not a district admin, dropping district announcement", sender.Phone)
		return nil
	}
	recipients, err := f.resolver.Resolve(ctx, ScopeAll, nil, event.Test)
	if err != nil {
		return err
	}
	return f.send(ctx, models.MessageTypeAlert, event.Body, recipients, nil, nil, event.Test)
}

func (f *AnnounceFlowImpl) send(ctx context.Context, msgType models.MessageType, body string, recipients []*models.Member, department *string, talkgroup *int64, test bool) error {
	key := utils.UTCNowMillis()
	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           msgType,
		RecipientCount: len(recipients),
		Body:           body,
		Department:     department,
		Talkgroup:      talkgroup,
		TestMode:       &test,
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type: msgType,
		Key:  key,
	}, recipients, func(*models.Member) string { return body })

	return nil
}
