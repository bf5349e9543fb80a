package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"food-order-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyExists is returned when a unique account or ownership would be
// duplicated.
var ErrAlreadyExists = errors.New("already exists")

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new account. The email must be unused.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("email %s: %w", user.Email, ErrAlreadyExists)
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// EnsureUser creates user unless an account with the same email exists, in
// which case the stored account is loaded into user instead.
func (s *Store) EnsureUser(ctx context.Context, user *models.User) (created bool, err error) {
	existing, err := s.UserByEmail(ctx, user.Email)
	if err == nil {
		*user = existing
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return false, err
	}
	s.logger.Info("account provisioned", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return true, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	email = NormalizeEmail(email)
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return models.User{}, notFound(err, "user %s", email)
	}
	return u, nil
}

func (s *Store) FetchUser(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return models.User{}, notFound(err, "user %d", id)
	}
	return u, nil
}

// CreateRestaurant registers the single restaurant an owner may run.
func (s *Store) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Restaurant{}).Where("owner_id = ?", r.OwnerID).Count(&n).Error; err != nil {
			return fmt.Errorf("check owner: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("restaurant for owner %d: %w", r.OwnerID, ErrAlreadyExists)
		}
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create restaurant: %w", err)
		}
		return nil
	})
}
