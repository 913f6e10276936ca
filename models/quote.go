package models

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Quote struct {
	ID               string          `gorm:"primary_key;size:36" json:"id"`
	Number           string          `gorm:"size:100;uniqueIndex;not null" json:"number"`
	Status           QuoteStatus     `gorm:"size:30;not null;default:'DRAFT'" json:"status"`
	ClientId         string          `gorm:"size:36;index;not null" json:"client_id"`
	Client           *Client         `json:"client,omitempty"`
	ParentDocumentId *string         `gorm:"size:36;index" json:"parent_document_id"`
	OrderId          *string         `gorm:"size:36;index" json:"order_id"`
	CartSessionId    string          `gorm:"size:36;index" json:"cart_session_id"`
	CartData         CartData        `gorm:"type:json" json:"cart_data"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	ValidUntil       *time.Time      `json:"valid_until"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewQuote struct {
	ClientId      string     `json:"client_id" binding:"required"`
	CartSessionId string     `json:"cart_session_id"`
	Items         CartData   `json:"items"`
	ValidUntil    *time.Time `json:"valid_until"`
	Notes         string     `json:"notes"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func CreateQuote(ctx context.Context, input *NewQuote) (*Quote, error) {
	db := config.GetDB()

	if err := utils.ValidateResourceId[Client](ctx, input.ClientId); err != nil {
		return nil, utils.NewNotFoundError("client not found")
	}

	sessionId := input.CartSessionId
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	quote := Quote{
		Status:        QuoteStatusDraft,
		ClientId:      input.ClientId,
		CartSessionId: sessionId,
		CartData:      input.Items,
		TotalAmount:   input.Items.TotalAmount(),
		ValidUntil:    input.ValidUntil,
		Notes:         input.Notes,
	}

	err := createWithNumber(ctx, DocumentKindQuote, func(number string) {
		quote.Number = number
		quote.ID = ""
	}, func() error {
		tx := db.Begin()
		if err := tx.WithContext(ctx).Create(&quote).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := createHistory(ctx, tx, quote.ID, DocumentKindQuote, HistoryActionCreate, "", string(quote.Status), "quote created"); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return &quote, nil
}

func GetQuote(ctx context.Context, id string, associations ...string) (*Quote, error) {
	quote, err := utils.FetchModel[Quote](ctx, id, associations...)
	if err != nil {
		return nil, utils.NewNotFoundError("quote not found")
	}
	return quote, nil
}

func ListQuotes(ctx context.Context, status string, clientId string) ([]*Quote, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Client").Order("created_at DESC")
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if clientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", clientId)
	}
	var quotes []*Quote
	if err := dbCtx.Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

// DeleteQuote removes a quote. Quotes are the only hard-deletable document
// kind, and only while not accepted.
func DeleteQuote(ctx context.Context, id string) error {
	quote, err := GetQuote(ctx, id)
	if err != nil {
		return err
	}
	if quote.Status == QuoteStatusAccepted {
		return utils.NewBlockedError("accepted quote cannot be deleted")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&Quote{}, "id = ?", id).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := createHistory(ctx, tx, id, DocumentKindQuote, HistoryActionDelete, string(quote.Status), "", "quote deleted"); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
