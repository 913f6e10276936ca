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

type Invoice struct {
	ID               string          `gorm:"primary_key;size:36" json:"id"`
	Number           string          `gorm:"size:100;uniqueIndex;not null" json:"number"`
	Status           InvoiceStatus   `gorm:"size:30;not null;default:'DRAFT'" json:"status"`
	ClientId         string          `gorm:"size:36;index;not null" json:"client_id"`
	Client           *Client         `json:"client,omitempty"`
	ParentDocumentId *string         `gorm:"size:36;index" json:"parent_document_id"`
	OrderId          *string         `gorm:"size:36;index" json:"order_id"`
	CartSessionId    string          `gorm:"size:36;index" json:"cart_session_id"`
	CartData         CartData        `gorm:"type:json" json:"cart_data"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	DueDate          *time.Time      `json:"due_date"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	ClientId         string     `json:"client_id" binding:"required"`
	ParentDocumentId *string    `json:"parent_document_id"`
	CartSessionId    string     `json:"cart_session_id"`
	Items            CartData   `json:"items"`
	DueDate          *time.Time `json:"due_date"`
	Notes            string     `json:"notes"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (input *NewInvoice) validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[Client](ctx, input.ClientId); err != nil {
		return utils.NewNotFoundError("client not found")
	}
	if input.ParentDocumentId != nil && *input.ParentDocumentId != "" {
		if _, err := ResolveDocument(ctx, *input.ParentDocumentId); err != nil {
			return utils.NewNotFoundError("parent document not found")
		}
	}
	return nil
}

// CreateInvoice persists an invoice, optionally chained to an order or a
// quote. When the parent is an order, both pointer fields are written in the
// same transaction so the bidirectional link never half-exists.
func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	sessionId := input.CartSessionId
	var parentOrder *Order
	if input.ParentDocumentId != nil && *input.ParentDocumentId != "" {
		if order, err := utils.FetchModel[Order](ctx, *input.ParentDocumentId); err == nil {
			parentOrder = order
			if sessionId == "" {
				sessionId = order.CartSessionId
			}
		}
	}
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	items := input.Items
	if len(items) == 0 && parentOrder != nil {
		items = parentOrder.CartData
	}

	invoice := Invoice{
		Status:           InvoiceStatusDraft,
		ClientId:         input.ClientId,
		ParentDocumentId: input.ParentDocumentId,
		CartSessionId:    sessionId,
		CartData:         items,
		TotalAmount:      items.TotalAmount(),
		DueDate:          input.DueDate,
		Notes:            input.Notes,
	}
	if parentOrder != nil {
		invoice.OrderId = &parentOrder.ID
	}

	err := createWithNumber(ctx, DocumentKindInvoice, func(number string) {
		invoice.Number = number
		invoice.ID = ""
	}, func() error {
		tx := db.Begin()
		if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
			tx.Rollback()
			return err
		}
		if parentOrder != nil {
			err := tx.WithContext(ctx).Model(&Order{}).
				Where("id = ?", parentOrder.ID).
				Update("invoice_id", invoice.ID).Error
			if err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := createHistory(ctx, tx, invoice.ID, DocumentKindInvoice, HistoryActionCreate, "", string(invoice.Status), "invoice created"); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return &invoice, nil
}

func GetInvoice(ctx context.Context, id string, associations ...string) (*Invoice, error) {
	invoice, err := utils.FetchModel[Invoice](ctx, id, associations...)
	if err != nil {
		return nil, utils.NewNotFoundError("invoice not found")
	}
	return invoice, nil
}

func ListInvoices(ctx context.Context, status string, clientId string) ([]*Invoice, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Client").Order("created_at DESC")
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if clientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", clientId)
	}
	var invoices []*Invoice
	if err := dbCtx.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// FindUnlinkedInvoices returns invoices with no order back-pointer, the
// candidate pool for orphan-order matching in the link audit.
func FindUnlinkedInvoices(ctx context.Context) ([]*Invoice, error) {
	db := config.GetDB()
	var invoices []*Invoice
	err := db.WithContext(ctx).
		Where("order_id IS NULL AND parent_document_id IS NULL").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
