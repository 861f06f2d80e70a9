package businessflow

import (
	"context"
	"strconv"

	"github.com/tmcarr/heimdall/app/metrics"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// AuditRecorder persists one durable record per logical broadcast and emits
// the "message initiated" counter
type AuditRecorder struct {
	messageRepo repository.MessageRepository
}

func NewAuditRecorder(messageRepo repository.MessageRepository) *AuditRecorder {
	return &AuditRecorder{messageRepo: messageRepo}
}

// Record writes the audit row keyed by record.MessageKey. The write sets all
// fields unconditionally, so calling it again on event redelivery leaves
// recipient_count unchanged instead of inflating it.
func (r *AuditRecorder) Record(ctx context.Context, record *models.MessageRecord) error {
	if err := r.messageRepo.SetRecord(ctx, record); err != nil {
		return err
	}
	metrics.MessagesInitiated.WithLabelValues(
		string(record.Type),
		strconv.FormatBool(utils.IsTrue(record.TestMode)),
	).Inc()
	return nil
}
