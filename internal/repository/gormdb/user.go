package gormdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB provides user persistence on the shared connection.
type UserDB struct {
	conn *gorm.DB
}

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	err := u.conn.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("user", user.Email)
	}
	if err != nil {
		return fmt.Errorf("gormdb: creating user: %w", err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := u.conn.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("gormdb: getting user %s: %w", id, err)
	}
	return &user, nil
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := u.conn.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFoundMessage("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("gormdb: getting user by email: %w", err)
	}
	return &user, nil
}

// SoftDelete stamps deleted_at on an active user. The row is kept so the
// email stays taken.
func (u *UserDB) SoftDelete(ctx context.Context, id string) error {
	res := u.conn.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("gormdb: deleting user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// DecrementCredits is a single conditional UPDATE, so two concurrent chat
// calls can never both spend the last credit. The new balance is read back
// in the same transaction.
func (u *UserDB) DecrementCredits(ctx context.Context, id string) (int, error) {
	var credits int
	err := u.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).
			Where("id = ? AND deleted_at IS NULL AND credits > 0", id).
			Update("credits", gorm.Expr("credits - ?", 1))
		if res.Error != nil {
			return fmt.Errorf("gormdb: decrementing credits for %s: %w", id, res.Error)
		}

		var user model.User
		err := tx.Select("id", "credits", "deleted_at").Where("id = ?", id).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.IsDeleted()) {
			return apperror.NotFound("user", id)
		}
		if err != nil {
			return fmt.Errorf("gormdb: reading credits for %s: %w", id, err)
		}
		if res.RowsAffected == 0 {
			return apperror.Forbidden("Insufficient credits")
		}
		credits = user.Credits
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credits, nil
}
