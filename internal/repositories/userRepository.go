package repositories

import (
	"CopyTradeBot/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID returns nil, nil when the user does not exist.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindLeader returns the single leader account, or nil, nil if none is configured.
func (r *UserRepository) FindLeader(ctx context.Context) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.UserRoleLeader).
		Order("id ASC").
		First(&user).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListEligibleFollowers returns followers with copying enabled.
func (r *UserRepository) ListEligibleFollowers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND copy_enabled = ?", models.UserRoleFollower, true).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// ListFollowers returns every follower regardless of copy state.
func (r *UserRepository) ListFollowers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.UserRoleFollower).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// DisableCopy turns off copying for a follower.
func (r *UserRepository) DisableCopy(ctx context.Context, id uint) error {
	if id == 0 {
		return errors.New("invalid id")
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("copy_enabled", false).Error
}
