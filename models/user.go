package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100;uniqueIndex;not null" json:"email" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('ADMIN','MANAGER','COMPLECTATOR','EXECUTOR');not null;default:'MANAGER'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

type SignInInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	if !input.Role.Valid() {
		return nil, utils.NewValidationError("role", "invalid role")
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("email", "invalid email")
	}
	if err := utils.ValidateUnique[User](ctx, "email", input.Email, ""); err != nil {
		return nil, utils.NewValidationError("email", "duplicate email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func SignIn(ctx context.Context, input *SignInInput) (*AuthPayload, error) {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		return nil, errors.New("invalid email or password")
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("user is deactivated")
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, errors.New("invalid email or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: &user}, nil
}

func GetUser(ctx context.Context, id string) (*User, error) {
	user, err := utils.FetchModel[User](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("user not found")
	}
	return user, nil
}

// GetActiveUsersByRole returns active users holding the given role, used by
// the notification fan-out.
func GetActiveUsersByRole(ctx context.Context, role UserRole) ([]*User, error) {
	return utils.FetchModelsWhere[User](ctx, "role = ? AND is_active = ?", role, true)
}
