package ledger

import (
	"errors"
	"fmt"

	"market-simulator-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateUser registers a new user with the given starting balance.
// Usernames are unique; a duplicate is rejected with ErrDuplicateUsername.
func (l *Ledger) CreateUser(username string, balance float64) (*models.User, error) {
	user := models.User{Username: username, Balance: models.Round2(balance)}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("username = ?", username).First(&existing).Error
		if err == nil {
			return models.ErrDuplicateUsername
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check username '%s': %w", username, err)
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user '%s': %w", username, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("User created",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Float64("balance", user.Balance),
	)
	return &user, nil
}

// ListUsers returns all users in id order.
func (l *Ledger) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := l.db.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("could not load users: %w", err)
	}
	return users, nil
}
