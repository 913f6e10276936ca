package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DoorDimension is one measured opening. A non-empty list is required before
// an order can move into invoicing or production.
type DoorDimension struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Depth  int    `json:"depth"`
	Side   string `json:"side"`
	Notes  string `json:"notes"`
}

type DoorDimensions []DoorDimension

func (d DoorDimensions) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DoorDimensions) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported door dimensions column type")
	}
	if len(data) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(data, d)
}

type Order struct {
	ID               string          `gorm:"primary_key;size:36" json:"id"`
	Number           string          `gorm:"size:100;uniqueIndex;not null" json:"number"`
	Status           OrderStatus     `gorm:"size:30;not null;default:'NEW_PLANNED'" json:"status"`
	ClientId         string          `gorm:"size:36;index;not null" json:"client_id"`
	Client           *Client         `json:"client,omitempty"`
	ParentDocumentId *string         `gorm:"size:36;index" json:"parent_document_id"`
	QuoteId          *string         `gorm:"size:36;index" json:"quote_id"`
	InvoiceId        *string         `gorm:"size:36;index" json:"invoice_id"`
	SupplierOrderId  *string         `gorm:"size:36;index" json:"supplier_order_id"`
	CartSessionId    string          `gorm:"size:36;index" json:"cart_session_id"`
	CartData         CartData        `gorm:"type:json" json:"cart_data"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	LeadNumber       string          `gorm:"size:100" json:"lead_number"`
	ProjectFileURL   string          `gorm:"size:500" json:"project_file_url"`
	DoorDimensions   DoorDimensions  `gorm:"type:json" json:"door_dimensions"`
	ComplectatorId   *string         `gorm:"size:36" json:"complectator_id"`
	ExecutorId       *string         `gorm:"size:36" json:"executor_id"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	ClientId         string   `json:"client_id" binding:"required"`
	Items            CartData `json:"items"`
	CartSessionId    string   `json:"cart_session_id"`
	ParentDocumentId *string  `json:"parent_document_id"`
	LeadNumber       string   `json:"lead_number"`
	Notes            string   `json:"notes"`
}

type UpdateOrderInput struct {
	ProjectFileURL *string         `json:"project_file_url"`
	DoorDimensions *DoorDimensions `json:"door_dimensions"`
	ComplectatorId *string         `json:"complectator_id"`
	ExecutorId     *string         `json:"executor_id"`
	Notes          *string         `json:"notes"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

func (input *NewOrder) validate(ctx context.Context) error {
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

// CreateOrder persists a new order at checkout. The cart session id groups
// every document created from the same checkout; absent, a fresh one is
// generated.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	db := config.GetDB()

	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	sessionId := input.CartSessionId
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	order := Order{
		Status:           OrderStatusNewPlanned,
		ClientId:         input.ClientId,
		ParentDocumentId: input.ParentDocumentId,
		CartSessionId:    sessionId,
		CartData:         input.Items,
		TotalAmount:      input.Items.TotalAmount(),
		LeadNumber:       input.LeadNumber,
		Notes:            input.Notes,
	}

	err := createWithNumber(ctx, DocumentKindOrder, func(number string) {
		order.Number = number
		order.ID = ""
	}, func() error {
		tx := db.Begin()
		if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := createHistory(ctx, tx, order.ID, DocumentKindOrder, HistoryActionCreate, "", string(order.Status), "order created from checkout"); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func GetOrder(ctx context.Context, id string, associations ...string) (*Order, error) {
	order, err := utils.FetchModel[Order](ctx, id, associations...)
	if err != nil {
		return nil, utils.NewNotFoundError("order not found")
	}
	return order, nil
}

func ListOrders(ctx context.Context, status string, clientId string) ([]*Order, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Client").Order("created_at DESC")
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if clientId != "" {
		dbCtx = dbCtx.Where("client_id = ?", clientId)
	}
	var orders []*Order
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderDetails edits guard-relevant fields. Status is never touched
// here; all status changes go through the workflow transition path.
func UpdateOrderDetails(ctx context.Context, id string, input *UpdateOrderInput) (*Order, error) {
	order, err := GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.ProjectFileURL != nil {
		updates["ProjectFileURL"] = *input.ProjectFileURL
	}
	if input.DoorDimensions != nil {
		updates["DoorDimensions"] = *input.DoorDimensions
	}
	if input.ComplectatorId != nil {
		if *input.ComplectatorId != "" {
			if err := utils.ValidateResourceId[User](ctx, *input.ComplectatorId); err != nil {
				return nil, utils.NewNotFoundError("complectator not found")
			}
		}
		updates["ComplectatorId"] = utils.NilIfEmpty(*input.ComplectatorId)
	}
	if input.ExecutorId != nil {
		if *input.ExecutorId != "" {
			if err := utils.ValidateResourceId[User](ctx, *input.ExecutorId); err != nil {
				return nil, utils.NewNotFoundError("executor not found")
			}
		}
		updates["ExecutorId"] = utils.NilIfEmpty(*input.ExecutorId)
	}
	if input.Notes != nil {
		updates["Notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return order, nil
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := createHistory(ctx, tx, order.ID, DocumentKindOrder, HistoryActionUpdate, "", "", "order details updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetOrder(ctx, id)
}

// FindDuplicateOrder looks for a recent order of the same client carrying an
// equivalent cart snapshot, used to warn against double checkouts.
func FindDuplicateOrder(ctx context.Context, clientId string, items CartData, within time.Duration) (*Order, error) {
	db := config.GetDB()
	var candidates []*Order
	err := db.WithContext(ctx).
		Where("client_id = ? AND created_at >= ?", clientId, time.Now().Add(-within)).
		Order("created_at DESC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if EqualCart(candidate.CartData, items) {
			return candidate, nil
		}
	}
	return nil, nil
}
