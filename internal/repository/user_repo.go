package repository

import (
	"jobly/internal/domain"
	"jobly/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByTelegramID(telegramID int64) (*models.User, error) {
	var u models.User
	if err := r.db.Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

// UpsertFromTelegram creates the user on first /start and refreshes the
// Telegram profile fields on every later one.
func (r *UserRepository) UpsertFromTelegram(telegramID int64, username, firstName, lastName string) (*models.User, error) {
	u, err := r.GetByTelegramID(telegramID)
	if err == nil {
		u.Username = username
		u.FirstName = firstName
		u.LastName = lastName
		if err := r.db.Save(u).Error; err != nil {
			return nil, err
		}
		return u, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	u = &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		Role:       domain.RoleUser,
		IsActive:   true,
	}
	if err := r.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}
