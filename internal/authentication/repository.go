package authentication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrRecordNotFound       = errors.New("refresh token record not found")
	ErrRecordIncomplete     = errors.New("refresh token record is missing id, person or expiry")
	ErrUnresponsiveDatabase = errors.New("error occurred during access to refresh token store")
)

// RefreshTokenStore persists refresh tokens and their family relationships.
// Every status transition is conditional and reports whether it changed
// anything; callers rely on that report instead of a prior read.
type RefreshTokenStore interface {
	// Create inserts record as Active. An empty FamilyID makes the record the
	// root of a new family.
	Create(ctx context.Context, record *RefreshTokenRecord) error
	FindByID(ctx context.Context, id string) (*RefreshTokenRecord, error)
	FindActiveByID(ctx context.Context, id string) (*RefreshTokenRecord, error)
	// MarkRotated flips id from Active to Rotated. False means it was not Active.
	MarkRotated(ctx context.Context, id, replacedByID string) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForPerson(ctx context.Context, personID uint) (int64, error)
	// RevokeOne flips id from Active to Revoked. False means it was not Active.
	RevokeOne(ctx context.Context, id string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// prepareForCreate fills the defaults shared by every store backend.
func prepareForCreate(record *RefreshTokenRecord) error {
	if record.ID == "" || record.PersonID == 0 || record.ExpiresAt.IsZero() {
		return ErrRecordIncomplete
	}
	if record.FamilyID == "" {
		record.FamilyID = record.ID
	}
	if record.IssuedAt.IsZero() {
		record.IssuedAt = time.Now().UTC()
	}
	record.Status = StatusActive
	record.ReplacedByID = nil
	record.RevokedAt = nil
	return nil
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RefreshTokenStore {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(ctx context.Context, record *RefreshTokenRecord) error {
	if err := prepareForCreate(record); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("%w: failed to create refresh token record: %v", ErrUnresponsiveDatabase, err)
	}
	return nil
}

func (r *recordRepository) FindByID(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	return r.find(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *recordRepository) FindActiveByID(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	return r.find(r.db.WithContext(ctx).Where("id = ? AND status = ?", id, string(StatusActive)))
}

func (r *recordRepository) find(query *gorm.DB) (*RefreshTokenRecord, error) {
	var record RefreshTokenRecord
	err := query.First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return &record, nil
}

// MarkRotated is a single conditional UPDATE; RowsAffected decides the race.
func (r *recordRepository) MarkRotated(ctx context.Context, id, replacedByID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&RefreshTokenRecord{}).
		Where("id = ? AND status = ?", id, string(StatusActive)).
		Updates(map[string]any{
			"status":         string(StatusRotated),
			"replaced_by_id": replacedByID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *recordRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	return r.revokeWhere(ctx, "family_id = ?", familyID)
}

func (r *recordRepository) RevokeAllForPerson(ctx context.Context, personID uint) (int64, error) {
	return r.revokeWhere(ctx, "person_id = ?", personID)
}

func (r *recordRepository) revokeWhere(ctx context.Context, cond string, arg any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&RefreshTokenRecord{}).
		Where(cond, arg).
		Where("status <> ?", string(StatusRevoked)).
		Updates(map[string]any{
			"status":     string(StatusRevoked),
			"revoked_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *recordRepository) RevokeOne(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&RefreshTokenRecord{}).
		Where("id = ? AND status = ?", id, string(StatusActive)).
		Updates(map[string]any{
			"status":     string(StatusRevoked),
			"revoked_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *recordRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&RefreshTokenRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, res.Error)
	}
	return res.RowsAffected, nil
}
