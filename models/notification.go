package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is an in-app inbox row for a staff user. Client-facing
// notifications travel over the external channel instead and never land
// here.
type Notification struct {
	ID           string       `gorm:"primary_key;size:36" json:"id"`
	UserId       string       `gorm:"size:36;index;not null" json:"user_id"`
	DocumentId   string       `gorm:"size:36;index;not null" json:"document_id"`
	DocumentKind DocumentKind `gorm:"size:20;not null" json:"document_kind"`
	Number       string       `gorm:"size:100" json:"number"`
	OldStatus    string       `gorm:"size:30" json:"old_status"`
	NewStatus    string       `gorm:"size:30" json:"new_status"`
	Message      string       `gorm:"type:text" json:"message"`
	IsRead       *bool        `gorm:"not null;default:false" json:"is_read"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// statusNotificationRoles maps (kind, new status) to the roles that care.
// Unlisted combinations notify nobody.
var statusNotificationRoles = map[DocumentKind]map[string][]NotificationRecipientRole{
	DocumentKindOrder: {
		string(OrderStatusNewPlanned):              {RecipientRoleComplectator, RecipientRoleExecutor},
		string(OrderStatusUnderReview):             {RecipientRoleComplectator, RecipientRoleExecutor},
		string(OrderStatusAwaitingMeasurement):     {RecipientRoleComplectator, RecipientRoleExecutor},
		string(OrderStatusAwaitingInvoice):         {RecipientRoleComplectator, RecipientRoleExecutor},
		string(OrderStatusReadyForProduction):      {RecipientRoleComplectator, RecipientRoleExecutor},
		string(OrderStatusCompleted):               {RecipientRoleComplectator, RecipientRoleExecutor, RecipientRoleManager},
		string(OrderStatusReturnedToComplectation): {RecipientRoleComplectator},
		string(OrderStatusCancelled):               {RecipientRoleComplectator, RecipientRoleExecutor},
	},
	DocumentKindQuote: {
		string(QuoteStatusSent):     {RecipientRoleClient},
		string(QuoteStatusAccepted): {RecipientRoleComplectator},
		string(QuoteStatusRejected): {RecipientRoleComplectator},
	},
	DocumentKindInvoice: {
		string(InvoiceStatusSent): {RecipientRoleClient},
		string(InvoiceStatusPaid): {RecipientRoleExecutor, RecipientRoleManager},
	},
	DocumentKindSupplierOrder: {
		string(SupplierOrderStatusOrdered):              {RecipientRoleComplectator, RecipientRoleExecutor},
		string(SupplierOrderStatusReceivedFromSupplier): {RecipientRoleComplectator, RecipientRoleExecutor},
		string(SupplierOrderStatusCompleted):            {RecipientRoleComplectator, RecipientRoleExecutor},
	},
}

// RolesForStatusChange returns who should hear about a transition.
func RolesForStatusChange(kind DocumentKind, newStatus string) []NotificationRecipientRole {
	byStatus, ok := statusNotificationRoles[kind]
	if !ok {
		return nil
	}
	return byStatus[newStatus]
}

func CreateNotification(ctx context.Context, n *Notification) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(n).Error
}

func StatusChangeMessage(kind DocumentKind, number, oldStatus, newStatus string) string {
	return fmt.Sprintf("%s %s: %s -> %s", kind, number, oldStatus, newStatus)
}

func ListNotifications(ctx context.Context, userId string, unreadOnly bool) ([]*Notification, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_id = ?", userId).Order("created_at DESC")
	if unreadOnly {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	var rows []*Notification
	if err := dbCtx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func MarkNotificationRead(ctx context.Context, userId string, id string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userId).
		Update("is_read", true).Error
}
