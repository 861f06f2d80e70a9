package businessflow

import (
	"context"
	"log"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/utils"
)

// PageFlow turns an inbound radio page into a broadcast to every subscribed
// member of the paged talkgroup
type PageFlow interface {
	Page(ctx context.Context, event dto.PageEvent) error
}

// PageFlowImpl implements the page business flow
type PageFlowImpl struct {
	resolver   *RecipientResolver
	directory  *services.Directory
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	linkDomain string
	logger     *log.Logger
}

func NewPageFlow(
	resolver *RecipientResolver,
	directory *services.Directory,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	linkDomain string,
	logger *log.Logger,
) PageFlow {
	return &PageFlowImpl{
		resolver:   resolver,
		directory:  directory,
		recorder:   recorder,
		dispatcher: dispatcher,
		linkDomain: linkDomain,
		logger:     logger,
	}
}

// Page processes one page event. The link in each body carries the
// recipient's own phone as the cs parameter so opens can be attributed.
func (f *PageFlowImpl) Page(ctx context.Context, event dto.PageEvent) error {
	tg, err := f.directory.Talkgroup(ctx, event.Talkgroup)
	if err != nil {
		return err
	}
	if tg == nil {
		f.logger.Printf("page: talkgroup %d is not configured, dropping file %s", event.Talkgroup, event.FileKey)
		return nil
	}

	candidates, err := f.resolver.Resolve(ctx, ScopeAll, &event.Talkgroup, event.Test)
	if err != nil {
		return err
	}

	// Transcript subscribers skip the immediate page; they get it again from
	// the transcription flow with the spoken text included.
	var recipients []*models.Member
	for _, m := range candidates {
		if !utils.IsTrue(m.WantsTranscript) {
			recipients = append(recipients, m)
		}
	}

	key := utils.UTCNowMillis()
	pagedAt := utils.MillisToTime(key)

	params := PageParams{
		Service:    tg.Service,
		Party:      tg.PartyName,
		PagedAt:    pagedAt,
		FileKey:    event.FileKey,
		LinkPreset: tg.LinkPreset,
		LinkDomain: f.linkDomain,
	}

	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           models.MessageTypePage,
		RecipientCount: len(recipients),
		Body:           ComposePage(params),
		FileKey:        &event.FileKey,
		Talkgroup:      &event.Talkgroup,
		TestMode:       &event.Test,
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type: models.MessageTypePage,
		Key:  key,
	}, recipients, func(m *models.Member) string {
		p := params
		p.CallSign = m.Phone
		return ComposePage(p)
	})

	return nil
}
