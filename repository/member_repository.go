package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmcarr/heimdall/models"
	"gorm.io/gorm"
)

// MemberRepositoryImpl implements MemberRepository
type MemberRepositoryImpl struct {
	*BaseRepository[models.Member, models.MemberFilter]
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &MemberRepositoryImpl{BaseRepository: NewBaseRepository[models.Member, models.MemberFilter](db)}
}

func (r *MemberRepositoryImpl) ByPhone(ctx context.Context, phone string) (*models.Member, error) {
	db := r.getDB(ctx)
	var row models.Member
	if err := db.Where("phone = ?", phone).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *MemberRepositoryImpl) ListAll(ctx context.Context) ([]*models.Member, error) {
	db := r.getDB(ctx)
	var rows []*models.Member
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return rows, nil
}

// ActiveInDepartment narrows the candidate set with a jsonb containment match
// before the resolver applies its in-memory filters.
func (r *MemberRepositoryImpl) ActiveInDepartment(ctx context.Context, department string) ([]*models.Member, error) {
	db := r.getDB(ctx)
	var rows []*models.Member
	containment := fmt.Sprintf(`{%q: {"active": true}}`, department)
	if err := db.Where("departments @> ?::jsonb", containment).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list members active in %s: %w", department, err)
	}
	return rows, nil
}

// Activate marks the member active in the given department and clears any
// pending login code. Returns the updated member, or nil when no such member
// or membership exists.
func (r *MemberRepositoryImpl) Activate(ctx context.Context, phone, department string) (*models.Member, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
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

	var row models.Member
	if err = db.Where("phone = ?", phone).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = nil
			return nil, nil
		}
		return nil, err
	}

	ms, ok := row.Departments[department]
	if !ok {
		return nil, nil
	}
	ms.Active = true
	row.Departments[department] = ms
	row.PendingLoginCode = nil

	err = db.Model(&models.Member{}).
		Where("phone = ?", phone).
		Updates(map[string]any{
			"departments":        row.Departments,
			"pending_login_code": gorm.Expr("NULL"),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to activate member %s in %s: %w", phone, department, err)
	}
	return &row, nil
}

func (r *MemberRepositoryImpl) SetTestMode(ctx context.Context, phone string, enabled bool) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Member{}).Where("phone = ?", phone).Update("test_mode", enabled).Error
	if err != nil {
		return fmt.Errorf("failed to set test mode for %s: %w", phone, err)
	}
	return nil
}

// ApplyDeliveryOutcome folds a provider callback into the member's failure
// counter: delivered resets, undelivered increments when the previous status
// was already undelivered and otherwise restarts at 1, any other status
// leaves the counter alone. One UPDATE, so concurrent callbacks for the same
// member interleave at the row level rather than read-modify-write in Go.
func (r *MemberRepositoryImpl) ApplyDeliveryOutcome(ctx context.Context, phone string, status models.DeliveryStatus) (int, error) {
	db := r.getDB(ctx)

	var count int
	err := db.Raw(`
		UPDATE members SET
			fail_count = CASE
				WHEN ? = 'delivered' THEN 0
				WHEN ? = 'undelivered' AND last_status = 'undelivered' THEN fail_count + 1
				WHEN ? = 'undelivered' THEN 1
				ELSE fail_count
			END,
			last_status = ?,
			updated_at = CURRENT_TIMESTAMP AT TIME ZONE 'UTC'
		WHERE phone = ?
		RETURNING fail_count`,
		string(status), string(status), string(status), string(status), phone,
	).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to apply delivery outcome for %s: %w", phone, err)
	}
	return count, nil
}

func (r *MemberRepositoryImpl) SetPendingLoginCode(ctx context.Context, phone, code string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Member{}).Where("phone = ?", phone).Update("pending_login_code", code).Error
	if err != nil {
		return fmt.Errorf("failed to set login code for %s: %w", phone, err)
	}
	return nil
}

func (r *MemberRepositoryImpl) applyFilter(db *gorm.DB, f models.MemberFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	if f.TestMode != nil {
		db = db.Where("test_mode = ?", *f.TestMode)
	}
	if f.IsDistrictAdmin != nil {
		db = db.Where("is_district_admin = ?", *f.IsDistrictAdmin)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MemberRepositoryImpl) ByFilter(ctx context.Context, filter models.MemberFilter, orderBy string, limit, offset int) ([]*models.Member, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Member{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Member
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find members by filter: %w", err)
	}
	return rows, nil
}
