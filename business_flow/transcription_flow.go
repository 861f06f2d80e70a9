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

// Transcription job tag keys set when the job is started
const (
	TranscriptionTagFileKey   = "file_key"
	TranscriptionTagTalkgroup = "talkgroup"
)

// TranscriptionFlow handles transcription-complete events: transcript
// subscribers get the page again with the spoken text included, or a plain
// transcript notice when the audio never produced a page record
type TranscriptionFlow interface {
	HandleTranscription(ctx context.Context, event dto.TranscriptionEvent) error
}

// TranscriptionFlowImpl implements the transcription business flow
type TranscriptionFlowImpl struct {
	messageRepo repository.MessageRepository
	directory   *services.Directory
	resolver    *RecipientResolver
	recorder    *AuditRecorder
	dispatcher  *Dispatcher
	linkDomain  string
	logger      *log.Logger
}

func NewTranscriptionFlow(
	messageRepo repository.MessageRepository,
	directory *services.Directory,
	resolver *RecipientResolver,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	linkDomain string,
	logger *log.Logger,
) TranscriptionFlow {
	return &TranscriptionFlowImpl{
		messageRepo: messageRepo,
		directory:   directory,
		resolver:    resolver,
		recorder:    recorder,
		dispatcher:  dispatcher,
		linkDomain:  linkDomain,
		logger:      logger,
	}
}

// HandleTranscription processes one completed transcription job
func (f *TranscriptionFlowImpl) HandleTranscription(ctx context.Context, event dto.TranscriptionEvent) error {
	tgRaw, ok := event.Tags[TranscriptionTagTalkgroup]
	if !ok {
		f.logger.Printf("transcription: job %s has no talkgroup tag, dropping", event.JobID)
		return nil
	}
	tgID, err := strconv.ParseInt(tgRaw, 10, 64)
	if err != nil {
		f.logger.Printf("transcription: job %s has bad talkgroup tag %q, dropping", event.JobID, tgRaw)
		return nil
	}
	tg, err := f.directory.Talkgroup(ctx, tgID)
	if err != nil {
		return err
	}
	if tg == nil {
		f.logger.Printf("transcription: talkgroup %d is not configured, dropping job %s", tgID, event.JobID)
		return nil
	}

	fileKey := event.Tags[TranscriptionTagFileKey]
	var pageRecord *models.MessageRecord
	if fileKey != "" {
		pageRecord, err = f.messageRepo.LatestByFileKey(ctx, fileKey)
		if err != nil {
			return err
		}
	}

	test := pageRecord != nil && utils.IsTrue(pageRecord.TestMode)
	candidates, err := f.resolver.Resolve(ctx, ScopeAll, &tgID, test)
	if err != nil {
		return err
	}
	var recipients []*models.Member
	for _, m := range candidates {
		if utils.IsTrue(m.WantsTranscript) {
			recipients = append(recipients, m)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	key := utils.UTCNowMillis()
	var body string
	var params PageParams
	perRecipient := false
	if pageRecord != nil && pageRecord.FileKey != nil {
		params = PageParams{
			Service:    tg.Service,
			Party:      tg.PartyName,
			PagedAt:    utils.MillisToTime(pageRecord.MessageKey),
			Transcript: event.Transcript,
			FileKey:    *pageRecord.FileKey,
			LinkPreset: tg.LinkPreset,
			LinkDomain: f.linkDomain,
		}
		body = ComposePage(params)
		perRecipient = true
	} else {
		body = ComposeTranscriptNotice(*tg, event.Transcript, f.linkDomain)
	}

	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           models.MessageTypeTranscript,
		RecipientCount: len(recipients),
		Body:           body,
		Talkgroup:      &tgID,
		TestMode:       &test,
	}
	if fileKey != "" {
		record.FileKey = &fileKey
	}
	if err := f.recorder.Record(ctx, record); err != nil {
		return err
	}

	f.dispatcher.Dispatch(ctx, DispatchContext{
		Type: models.MessageTypeTranscript,
		Key:  key,
	}, recipients, func(m *models.Member) string {
		if !perRecipient {
			return body
		}
		p := params
		p.CallSign = m.Phone
		return ComposePage(p)
	})

	return nil
}
