package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// Test-mode command bodies recognized on any reply-capable channel
const (
	CommandStartTest = "!startTest"
	CommandEndTest   = "!endTest"
)

const (
	ReplyTestEnabled  = "Testing mode enabled"
	ReplyTestDisabled = "Testing mode disabled"
)

// InboundFlow classifies texts received on the configured numbers and either
// applies a command, swallows automated noise, answers with a rejection, or
// broadcasts the message to the right department
type InboundFlow interface {
	HandleText(ctx context.Context, event dto.InboundTextEvent) error
}

// InboundFlowImpl implements the inbound classifier
type InboundFlowImpl struct {
	memberRepo repository.MemberRepository
	directory  *services.Directory
	resolver   *RecipientResolver
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	provider   services.MessagingProvider
	maxBodyLen int
	logger     *log.Logger
}

func NewInboundFlow(
	memberRepo repository.MemberRepository,
	directory *services.Directory,
	resolver *RecipientResolver,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	provider services.MessagingProvider,
	maxBodyLen int,
	logger *log.Logger,
) InboundFlow {
	if maxBodyLen <= 0 {
		maxBodyLen = 1250
	}
	return &InboundFlowImpl{
		memberRepo: memberRepo,
		directory:  directory,
		resolver:   resolver,
		recorder:   recorder,
		dispatcher: dispatcher,
		provider:   provider,
		maxBodyLen: maxBodyLen,
		logger:     logger,
	}
}

// HandleText processes one inbound text. Senders get a user-visible reply on
// every rejection path except configured silent drops (unconfigured channel,
// automated noise), so the channel never appears to eat a message.
func (f *InboundFlowImpl) HandleText(ctx context.Context, event dto.InboundTextEvent) error {
	channel, err := f.directory.IdentityByNumber(ctx, event.To)
	if err != nil {
		return err
	}
	if channel == nil || channel.Type == models.IdentityTypeAlert {
		// A retired or outbound-only number still receiving texts is a
		// steady-state condition, not an incident.
		f.logger.Printf("inbound: no reply-capable channel for %s, dropping text from %s", event.To, event.From)
		return nil
	}

	sender, err := f.memberRepo.ByPhone(ctx, event.From)
	if err != nil {
		return err
	}
	if sender == nil || len(sender.ActiveDepartments()) == 0 {
		f.reply(ctx, channel, event.From, ComposeNotSubscribed())
		return nil
	}

	switch strings.TrimSpace(event.Body) {
	case CommandStartTest:
		if err := f.memberRepo.SetTestMode(ctx, sender.Phone, true); err != nil {
			return err
		}
		f.reply(ctx, channel, sender.Phone, ReplyTestEnabled)
		return nil
	case CommandEndTest:
		if err := f.memberRepo.SetTestMode(ctx, sender.Phone, false); err != nil {
			return err
		}
		f.reply(ctx, channel, sender.Phone, ReplyTestDisabled)
		return nil
	}

	if IsAutomatedNoise(event.Body) {
		f.logger.Printf("inbound: swallowing automated reply from %s", sender.Phone)
		return nil
	}

	department, ok := f.attributeDepartment(sender, channel)
	if !ok {
		// Ambiguity the engine refuses to guess at.
		f.reply(ctx, channel, sender.Phone, ComposeAmbiguous())
		return nil
	}
	if department == "" {
		f.reply(ctx, channel, sender.Phone, ComposeNotSubscribed())
		return nil
	}

	if len(event.Body) > f.maxBodyLen {
		f.reply(ctx, channel, sender.Phone, ComposeTooLong(f.maxBodyLen))
		return nil
	}

	deptCfg, err := f.directory.Department(ctx, department)
	if err != nil {
		return err
	}
	if deptCfg == nil {
		f.logger.Printf("inbound: department %s is not configured, dropping text from %s", department, sender.Phone)
		return nil
	}

	return f.broadcast(ctx, channel, deptCfg, sender, event)
}

// attributeDepartment computes the single department an inbound text belongs
// to. The second return is false when the sender is ambiguous for this
// channel: more than one department on a peer-chat channel, or more than one
// admin department (or none admin but several active) on a page channel.
func (f *InboundFlowImpl) attributeDepartment(sender *models.Member, channel *models.SendingIdentity) (string, bool) {
	linked := sender.ActiveDepartments()
	if channel.Department != "" {
		if sender.IsActiveIn(channel.Department) {
			linked = []string{channel.Department}
		} else {
			linked = nil
		}
	}

	if channel.Type == models.IdentityTypeChat {
		if len(linked) > 1 {
			return "", false
		}
		if len(linked) == 0 {
			return "", true
		}
		return linked[0], true
	}

	var admin []string
	for _, dept := range linked {
		if sender.IsAdminIn(dept) {
			admin = append(admin, dept)
		}
	}
	switch {
	case len(admin) > 1:
		return "", false
	case len(admin) == 1:
		return admin[0], true
	case len(linked) > 1:
		return "", false
	case len(linked) == 1:
		return linked[0], true
	default:
		return "", true
	}
}

// broadcast fans the classified message out to the department
func (f *InboundFlowImpl) broadcast(ctx context.Context, channel *models.SendingIdentity, dept *models.Department, sender *models.Member, event dto.InboundTextEvent) error {
	pageChannel := channel.Type == models.IdentityTypePage
	announcement := pageChannel && sender.IsAdminIn(dept.ID)

	msgType := models.MessageTypeDepartmentText
	if announcement {
		msgType = models.MessageTypePageAnnouncement
	}

	body := ComposeDepartmentText(*dept, event.Body, sender.DisplayName(), sender.CallSignIn(dept.ID), announcement)

	testMode := utils.IsTrue(sender.TestMode)
	recipients, err := f.resolver.Resolve(ctx, dept.ID, nil, testMode)
	if err != nil {
		return err
	}

	// Peer messages on a page channel loop the sender in so they see their
	// own broadcast; ordinary chat never echoes the sender.
	if !pageChannel {
		filtered := recipients[:0]
		for _, m := range recipients {
			if m.Phone != sender.Phone {
				filtered = append(filtered, m)
			}
		}
		recipients = filtered
	}

	key := utils.UTCNowMillis()
	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           msgType,
		RecipientCount: len(recipients),
		Body:           body,
		Media:          event.MediaURLs,
		Department:     &dept.ID,
		TestMode:       &testMode,
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type:  msgType,
		Key:   key,
		Media: event.MediaURLs,
	}, recipients, func(*models.Member) string { return body })

	return nil
}

// reply answers the sender directly from the channel they texted. Reply
// failures are logged, never escalated; the inbound event itself succeeded.
func (f *InboundFlowImpl) reply(ctx context.Context, channel *models.SendingIdentity, to, body string) {
	err := f.provider.Send(ctx, channel, services.SendRequest{
		To:   to,
		Body: body,
	})
	if err != nil {
		f.logger.Printf("inbound: reply to %s failed: %v", to, err)
	}
}

// Reaction prefixes iOS puts in front of quoted tapback replies
var reactionPrefixes = []string{
	`Liked "`,
	`Loved "`,
	`Disliked "`,
	`Laughed at "`,
	`Emphasized "`,
	`Questioned "`,
	"Liked “",
	"Loved “",
	"Disliked “",
	"Laughed at “",
	"Emphasized “",
	"Questioned “",
}

// Fragments of car do-not-disturb auto replies
var autoReplyFragments = []string{
	"I'm driving",
	"I am driving",
	"Sent from My Car",
	"do not disturb while driving",
}

// IsAutomatedNoise reports whether a body is a known automated reply that
// should be swallowed rather than broadcast or answered
func IsAutomatedNoise(body string) bool {
	trimmed := strings.TrimSpace(body)
	for _, p := range reactionPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	lower := strings.ToLower(trimmed)
	for _, fragment := range autoReplyFragments {
		if strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
