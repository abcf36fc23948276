package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stock-ledger/ledger"
	"stock-ledger/models"
)

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err, "user "+username)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate(err, "user "+u.Username)
	}
	return nil
}

// ListUsers returns every non-admin user.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role <> ?", models.RoleAdmin).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes the user together with their trades and positions.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, id).Error; err != nil {
			return translate(err, fmt.Sprintf("user %d", id))
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Trade{}).Error; err != nil {
			return fmt.Errorf("delete trades: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Position{}).Error; err != nil {
			return fmt.Errorf("delete positions: %w", err)
		}
		return tx.Delete(&u).Error
	})
}

// EnsureAdmin creates an admin account when the users table is empty.
func (s *Store) EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	admin := &models.User{Username: username, PasswordHash: passwordHash, Role: models.RoleAdmin}
	if err := s.CreateUser(ctx, admin); err != nil {
		return false, err
	}
	s.logger.Info("default admin user created", zap.String("username", username))
	return true, nil
}

// UpsertAdmin creates username as an admin, or promotes and resets the
// password of an existing account.
func (s *Store) UpsertAdmin(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u, err := s.UserByUsername(ctx, username)
	switch {
	case err == nil:
		u.Role = models.RoleAdmin
		u.PasswordHash = passwordHash
		if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
			return nil, err
		}
		return u, nil
	case errors.Is(err, ledger.ErrNotFound):
		u = &models.User{Username: username, PasswordHash: passwordHash, Role: models.RoleAdmin}
		if err := s.CreateUser(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, err
	}
}

func (s *Store) CreateStock(ctx context.Context, st *models.Stock) error {
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		return translate(err, "stock "+st.Symbol)
	}
	return nil
}

// UpdateStock overwrites symbol, name and price of an existing stock.
func (s *Store) UpdateStock(ctx context.Context, id uint, update models.Stock) (*models.Stock, error) {
	st, err := s.StockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Symbol = update.Symbol
	st.Name = update.Name
	st.Price = update.Price
	if err := s.db.WithContext(ctx).Save(st).Error; err != nil {
		return nil, translate(err, "stock "+st.Symbol)
	}
	return st, nil
}

// DeleteStock refuses to remove a stock that is still held or has trade
// history; recorded prices go with it.
func (s *Store) DeleteStock(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st models.Stock
		if err := tx.First(&st, id).Error; err != nil {
			return translate(err, fmt.Sprintf("stock %d", id))
		}

		var held int64
		if err := tx.Model(&models.Position{}).Where("stock_id = ? AND quantity > 0", id).Count(&held).Error; err != nil {
			return err
		}
		if held > 0 {
			return fmt.Errorf("%w: stock %s is held in %d positions", ledger.ErrInvalidOperation, st.Symbol, held)
		}
		var traded int64
		if err := tx.Model(&models.Trade{}).Where("stock_id = ?", id).Count(&traded).Error; err != nil {
			return err
		}
		if traded > 0 {
			return fmt.Errorf("%w: stock %s has trade history", ledger.ErrInvalidOperation, st.Symbol)
		}

		if err := tx.Where("stock_id = ?", id).Delete(&models.StockPrice{}).Error; err != nil {
			return fmt.Errorf("delete price history: %w", err)
		}
		if err := tx.Where("stock_id = ?", id).Delete(&models.Position{}).Error; err != nil {
			return fmt.Errorf("delete empty positions: %w", err)
		}
		return tx.Delete(&st).Error
	})
}
