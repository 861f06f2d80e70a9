package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"

	"github.com/tmcarr/heimdall/app/dto"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// LoginFlow handles login-code events: generate a one-time code, store it on
// the member, and text it through the member's usual sending identity
type LoginFlow interface {
	SendLoginCode(ctx context.Context, event dto.LoginCodeEvent) error
}

// LoginFlowImpl implements the login-code business flow
type LoginFlowImpl struct {
	memberRepo repository.MemberRepository
	recorder   *AuditRecorder
	dispatcher *Dispatcher
	logger     *log.Logger
}

func NewLoginFlow(
	memberRepo repository.MemberRepository,
	recorder *AuditRecorder,
	dispatcher *Dispatcher,
	logger *log.Logger,
) LoginFlow {
	return &LoginFlowImpl{
		memberRepo: memberRepo,
		recorder:   recorder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SendLoginCode processes one login-code event
func (f *LoginFlowImpl) SendLoginCode(ctx context.Context, event dto.LoginCodeEvent) error {
	member, err := f.memberRepo.ByPhone(ctx, event.Phone)
	if err != nil {
		return err
	}
	if member == nil {
		f.logger.Printf("login: unknown member %s, dropping", event.Phone)
		return nil
	}

	code, err := generateLoginCode()
	if err != nil {
		return fmt.Errorf("failed to generate login code: %w", err)
	}
	if err := f.memberRepo.SetPendingLoginCode(ctx, member.Phone, code); err != nil {
		return err
	}

	body := ComposeLoginCode(code)
	key := utils.UTCNowMillis()
	record := &models.MessageRecord{
		MessageKey:     key,
		Type:           models.MessageTypeAccount,
		RecipientCount: 1,
		Body:           "Login code message",
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

// generateLoginCode returns a 6-digit numeric code
func generateLoginCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
