package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tmcarr/heimdall/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	*BaseRepository[models.MessageRecord, models.MessageRecordFilter]
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{BaseRepository: NewBaseRepository[models.MessageRecord, models.MessageRecordFilter](db)}
}

func (r *MessageRepositoryImpl) ByKey(ctx context.Context, key int64) (*models.MessageRecord, error) {
	db := r.getDB(ctx)
	var row models.MessageRecord
	if err := db.Where("message_key = ?", key).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// LatestByFileKey returns the most recent record referencing an audio file
func (r *MessageRepositoryImpl) LatestByFileKey(ctx context.Context, fileKey string) (*models.MessageRecord, error) {
	db := r.getDB(ctx)
	var row models.MessageRecord
	if err := db.Where("file_key = ?", fileKey).Order("message_key DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// SetRecord upserts on message_key, assigning all broadcast fields rather than
// accumulating, so redelivery of the originating event overwrites the row with
// identical values instead of inflating recipient_count. Outcome lists are not
// touched on conflict; those belong to AppendOutcome.
func (r *MessageRepositoryImpl) SetRecord(ctx context.Context, record *models.MessageRecord) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "recipient_count", "body", "media",
			"file_key", "talkgroup", "department", "test_mode", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to set message record %d: %w", record.MessageKey, err)
	}
	return nil
}

// AppendOutcome pushes one delivery mark onto the outcome list matching the
// status. Appends are additive and tolerate duplicate provider callbacks.
func (r *MessageRepositoryImpl) AppendOutcome(ctx context.Context, key int64, status models.DeliveryStatus, mark models.DeliveryMark) error {
	var column string
	switch status {
	case models.DeliveryStatusSent:
		column = "sent"
	case models.DeliveryStatusDelivered:
		column = "delivered"
	case models.DeliveryStatusUndelivered:
		column = "undelivered"
	default:
		return fmt.Errorf("unknown delivery status %q", status)
	}

	payload, err := json.Marshal(mark)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery mark: %w", err)
	}

	db := r.getDB(ctx)
	err = db.Exec(
		fmt.Sprintf(`UPDATE message_records SET %s = %s || ?::jsonb, updated_at = CURRENT_TIMESTAMP AT TIME ZONE 'UTC' WHERE message_key = ?`, column, column),
		string(payload), key,
	).Error
	if err != nil {
		return fmt.Errorf("failed to append %s outcome to record %d: %w", status, key, err)
	}
	return nil
}

func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageRecordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.MessageKey != nil {
		db = db.Where("message_key = ?", *f.MessageKey)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
	}
	if f.Department != nil {
		db = db.Where("department = ?", *f.Department)
	}
	if f.Talkgroup != nil {
		db = db.Where("talkgroup = ?", *f.Talkgroup)
	}
	if f.TestMode != nil {
		db = db.Where("test_mode = ?", *f.TestMode)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageRecordFilter, orderBy string, limit, offset int) ([]*models.MessageRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MessageRecord{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.MessageRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find message records by filter: %w", err)
	}
	return rows, nil
}
