package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcarr/heimdall/models"
	testingutil "github.com/tmcarr/heimdall/testing"
	"github.com/tmcarr/heimdall/utils"
)

func TestMessageRepositorySetRecordIdempotent(t *testing.T) {
	withTestDB(t, func(t *testing.T, tdb *testingutil.TestDB) {
		repo := NewMessageRepository(tdb.DB)
		ctx := context.Background()

		key := utils.UTCNowMillis()
		record := &models.MessageRecord{
			MessageKey:     key,
			Type:           models.MessageTypePage,
			RecipientCount: 12,
			Body:           "FIRE PAGE",
		}
		require.NoError(t, repo.SetRecord(ctx, record))

		// Redelivery writes the same logical record again.
		again := &models.MessageRecord{
			MessageKey:     key,
			Type:           models.MessageTypePage,
			RecipientCount: 12,
			Body:           "FIRE PAGE",
		}
		require.NoError(t, repo.SetRecord(ctx, again))

		found, err := repo.ByKey(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 12, found.RecipientCount)

		var count int64
		require.NoError(t, tdb.DB.Model(&models.MessageRecord{}).Where("message_key = ?", key).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestMessageRepositoryAppendOutcome(t *testing.T) {
	withTestDB(t, func(t *testing.T, tdb *testingutil.TestDB) {
		repo := NewMessageRepository(tdb.DB)
		ctx := context.Background()

		key := utils.UTCNowMillis()
		require.NoError(t, repo.SetRecord(ctx, &models.MessageRecord{
			MessageKey: key,
			Type:       models.MessageTypePage,
			Body:       "FIRE PAGE",
		}))

		now := utils.UTCNow().Truncate(time.Millisecond)
		require.NoError(t, repo.AppendOutcome(ctx, key, models.DeliveryStatusSent, models.DeliveryMark{
			Time: now, Phone: "+17195550001",
		}))
		require.NoError(t, repo.AppendOutcome(ctx, key, models.DeliveryStatusDelivered, models.DeliveryMark{
			Time: now, Phone: "+17195550001",
		}))
		require.NoError(t, repo.AppendOutcome(ctx, key, models.DeliveryStatusUndelivered, models.DeliveryMark{
			Time: now, Phone: "+17195550002",
		}))
		require.NoError(t, repo.AppendOutcome(ctx, key, models.DeliveryStatusUndelivered, models.DeliveryMark{
			Time: now, Phone: "+17195550002",
		}))

		found, err := repo.ByKey(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Len(t, found.Delivered, 1)
		assert.Equal(t, "+17195550001", found.Delivered[0].Phone)
		// Duplicate callbacks append twice; the lists are additive on purpose.
		assert.Len(t, found.Undelivered, 2)
		assert.Len(t, found.Sent, 1)
		assert.Equal(t, "+17195550001", found.Sent[0].Phone)
	})
}

func TestMessageRepositorySaveBatchAndByFilter(t *testing.T) {
	withTestDB(t, func(t *testing.T, tdb *testingutil.TestDB) {
		repo := NewMessageRepository(tdb.DB)
		ctx := context.Background()

		base := utils.UTCNowMillis()
		page := &models.MessageRecord{
			MessageKey: base,
			Type:       models.MessageTypePage,
			Body:       "FIRE PAGE",
		}
		alert := &models.MessageRecord{
			MessageKey: base + 1,
			Type:       models.MessageTypeDepartmentAlert,
			Body:       "delivery failures",
		}
		require.NoError(t, repo.SaveBatch(ctx, []*models.MessageRecord{page, alert}))

		pageType := models.MessageTypePage
		pages, err := repo.ByFilter(ctx, models.MessageRecordFilter{Type: &pageType}, "message_key ASC", 0, 0)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, base, pages[0].MessageKey)

		found, err := repo.ByID(ctx, pages[0].ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, models.MessageTypePage, found.Type)
	})
}

func TestMessageRepositoryLatestByFileKey(t *testing.T) {
	withTestDB(t, func(t *testing.T, tdb *testingutil.TestDB) {
		repo := NewMessageRepository(tdb.DB)
		ctx := context.Background()

		fileKey := "rec-42"
		older := utils.UTCNowMillis() - 60000
		newer := older + 60000

		require.NoError(t, repo.SetRecord(ctx, &models.MessageRecord{
			MessageKey: older,
			Type:       models.MessageTypePage,
			Body:       "older",
			FileKey:    &fileKey,
		}))
		require.NoError(t, repo.SetRecord(ctx, &models.MessageRecord{
			MessageKey: newer,
			Type:       models.MessageTypePage,
			Body:       "newer",
			FileKey:    &fileKey,
		}))

		found, err := repo.LatestByFileKey(ctx, fileKey)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, newer, found.MessageKey)

		missing, err := repo.LatestByFileKey(ctx, "rec-does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
