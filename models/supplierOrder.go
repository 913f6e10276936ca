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

// supplierOrderSessionIndex is the composite unique index closing the
// idempotent-create race: two checkouts for the same parent and cart session
// cannot both insert.
const supplierOrderSessionIndex = "idx_supplier_parent_session"

type SupplierOrder struct {
	ID               string              `gorm:"primary_key;size:36" json:"id"`
	Number           string              `gorm:"size:100;uniqueIndex;not null" json:"number"`
	Status           SupplierOrderStatus `gorm:"size:30;not null;default:'PENDING'" json:"status"`
	ParentDocumentId *string             `gorm:"size:36;index;uniqueIndex:idx_supplier_parent_session" json:"parent_document_id"`
	OrderId          *string             `gorm:"size:36;index" json:"order_id"`
	CartSessionId    string              `gorm:"size:36;uniqueIndex:idx_supplier_parent_session" json:"cart_session_id"`
	SupplierName     string              `gorm:"size:255" json:"supplier_name"`
	CartData         CartData            `gorm:"type:json" json:"cart_data"`
	TotalAmount      decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	ExpectedAt       *time.Time          `json:"expected_at"`
	Notes            string              `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplierOrder struct {
	ParentDocumentId string     `json:"parent_document_id" binding:"required"`
	CartSessionId    string     `json:"cart_session_id"`
	SupplierName     string     `json:"supplier_name"`
	Items            CartData   `json:"items"`
	ExpectedAt       *time.Time `json:"expected_at"`
	Notes            string     `json:"notes"`
}

func (s *SupplierOrder) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func GetSupplierOrder(ctx context.Context, id string) (*SupplierOrder, error) {
	so, err := utils.FetchModel[SupplierOrder](ctx, id)
	if err != nil {
		return nil, utils.NewNotFoundError("supplier order not found")
	}
	return so, nil
}

func ListSupplierOrders(ctx context.Context, status string) ([]*SupplierOrder, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	var orders []*SupplierOrder
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// FindSupplierOrderBySession looks up the supplier order for one parent and
// cart session, the idempotency probe before creating a new one.
func FindSupplierOrderBySession(ctx context.Context, parentId string, cartSessionId string) (*SupplierOrder, error) {
	db := config.GetDB()
	var so SupplierOrder
	err := db.WithContext(ctx).
		Where("parent_document_id = ? AND cart_session_id = ?", parentId, cartSessionId).
		First(&so).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &so, nil
}

// InsertDependentSupplierOrder writes the row, its create-history entry and,
// when the parent is an order, the order's back-pointer, all in one
// transaction. A duplicate on the session index means a concurrent caller
// won and the caller reads back the winner; a duplicate on the number index
// triggers number regeneration via createWithNumber.
func InsertDependentSupplierOrder(ctx context.Context, so *SupplierOrder, parent *DocumentRef) error {
	db := config.GetDB()
	return createWithNumber(ctx, DocumentKindSupplierOrder, func(number string) {
		so.Number = number
		so.ID = ""
	}, func() error {
		tx := db.Begin()
		if err := tx.WithContext(ctx).Create(so).Error; err != nil {
			tx.Rollback()
			return err
		}
		if parent != nil && parent.Kind == DocumentKindOrder {
			err := tx.WithContext(ctx).Model(&Order{}).
				Where("id = ?", parent.ID).
				Update("supplier_order_id", so.ID).Error
			if err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := createHistory(ctx, tx, so.ID, DocumentKindSupplierOrder, HistoryActionCreate, "", string(so.Status), "supplier order created"); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit().Error
	})
}

// IsDuplicateSessionError reports a conflict on the (parent, session) unique
// index rather than the number index.
func IsDuplicateSessionError(err error) bool {
	return IsDuplicateKeyErrorForKey(err, supplierOrderSessionIndex)
}
