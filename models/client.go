package models

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone      string    `gorm:"size:20;index" json:"phone"`
	Email      string    `gorm:"size:100" json:"email"`
	Address    string    `gorm:"type:text" json:"address"`
	LeadNumber string    `gorm:"size:100;index" json:"lead_number"`
	Notes      string    `gorm:"type:text" json:"notes"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	LeadNumber string `json:"lead_number"`
	Notes      string `json:"notes"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (input *NewClient) validate(ctx context.Context, id string) error {
	if id != "" {
		if err := utils.ValidateResourceId[Client](ctx, id); err != nil {
			return utils.NewNotFoundError("client not found")
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("email", "invalid email")
	}
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	db := config.GetDB()

	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}

	phone := input.Phone
	if phone != "" {
		formatted, err := utils.FormatPhoneE164(phone, utils.CountryCode)
		if err != nil {
			return nil, utils.NewValidationError("phone", "invalid phone number")
		}
		phone = formatted
	}

	client := Client{
		Name:       input.Name,
		Phone:      phone,
		Email:      input.Email,
		Address:    input.Address,
		LeadNumber: input.LeadNumber,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}

	return &client, nil
}

// UpdateClient only touches contact fields. Name and lead number are fixed
// once any document references the client.
func UpdateClient(ctx context.Context, id string, input *NewClient) (*Client, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	client, err := utils.FetchModel[Client](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("client not found")
	}

	phone := input.Phone
	if phone != "" {
		formatted, err := utils.FormatPhoneE164(phone, utils.CountryCode)
		if err != nil {
			return nil, utils.NewValidationError("phone", "invalid phone number")
		}
		phone = formatted
	}

	referenced, err := clientIsReferenced(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Phone":   phone,
		"Email":   input.Email,
		"Address": input.Address,
		"Notes":   input.Notes,
	}
	if !referenced {
		updates["Name"] = input.Name
		updates["LeadNumber"] = input.LeadNumber
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&client).Updates(updates).Error; err != nil {
		return nil, err
	}

	return utils.FetchModel[Client](ctx, id)
}

func clientIsReferenced(ctx context.Context, id string) (bool, error) {
	for _, count := range []func() (int64, error){
		func() (int64, error) { return utils.ResourceCountWhere[Order](ctx, "client_id = ?", id) },
		func() (int64, error) { return utils.ResourceCountWhere[Invoice](ctx, "client_id = ?", id) },
		func() (int64, error) { return utils.ResourceCountWhere[Quote](ctx, "client_id = ?", id) },
	} {
		n, err := count()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func GetClient(ctx context.Context, id string) (*Client, error) {
	client, err := utils.FetchModel[Client](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("client not found")
	}
	return client, nil
}

func ListClients(ctx context.Context, name string, phone string) ([]*Client, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Order("created_at DESC")
	if name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+name+"%")
	}
	if phone != "" {
		dbCtx = dbCtx.Where("phone LIKE ?", "%"+phone+"%")
	}
	var clients []*Client
	if err := dbCtx.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
