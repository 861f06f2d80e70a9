// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/tmcarr/heimdall/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// MemberRepository defines operations for subscribed members
type MemberRepository interface {
	Repository[models.Member, models.MemberFilter]
	ByPhone(ctx context.Context, phone string) (*models.Member, error)
	ListAll(ctx context.Context) ([]*models.Member, error)
	ActiveInDepartment(ctx context.Context, department string) ([]*models.Member, error)
	Activate(ctx context.Context, phone, department string) (*models.Member, error)
	SetTestMode(ctx context.Context, phone string, enabled bool) error
	SetPendingLoginCode(ctx context.Context, phone, code string) error
	// ApplyDeliveryOutcome updates the member's last delivery status and
	// consecutive-failure counter in one statement and returns the new count.
	ApplyDeliveryOutcome(ctx context.Context, phone string, status models.DeliveryStatus) (int, error)
}

// MessageRepository defines operations for broadcast audit records
type MessageRepository interface {
	Repository[models.MessageRecord, models.MessageRecordFilter]
	ByKey(ctx context.Context, key int64) (*models.MessageRecord, error)
	LatestByFileKey(ctx context.Context, fileKey string) (*models.MessageRecord, error)
	// SetRecord writes the record keyed by MessageKey, overwriting all
	// broadcast fields on conflict so redelivered events cannot inflate counts.
	SetRecord(ctx context.Context, record *models.MessageRecord) error
	AppendOutcome(ctx context.Context, key int64, status models.DeliveryStatus, mark models.DeliveryMark) error
}
