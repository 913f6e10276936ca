package workflow

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

type ChangeStatusInput struct {
	// DocumentId may arrive in the body or be filled from the route param.
	DocumentId   string `json:"document_id"`
	DocumentKind string `json:"document_kind"`
	TargetStatus string `json:"target_status" binding:"required"`
	Notes        string `json:"notes"`
	// RequireMeasurement routes an order re-submitted for review either to
	// measurement or straight to invoicing.
	RequireMeasurement *bool `json:"require_measurement"`
}

// orderInvoiceStatusSync maps an order status onto the status its chained
// invoice should carry. Unlisted order statuses leave the invoice alone.
var orderInvoiceStatusSync = map[models.OrderStatus]models.InvoiceStatus{
	models.OrderStatusNewPlanned:          models.InvoiceStatusDraft,
	models.OrderStatusUnderReview:         models.InvoiceStatusDraft,
	models.OrderStatusAwaitingMeasurement: models.InvoiceStatusSent,
	models.OrderStatusAwaitingInvoice:     models.InvoiceStatusSent,
	models.OrderStatusCompleted:           models.InvoiceStatusPaid,
	models.OrderStatusCancelled:           models.InvoiceStatusCancelled,
}

// supplierOrderParentSync maps a supplier order status onto the status its
// parent order should move to. Unlisted statuses leave the order alone.
var supplierOrderParentSync = map[models.SupplierOrderStatus]models.OrderStatus{
	models.SupplierOrderStatusReceivedFromSupplier: models.OrderStatusReadyForProduction,
	models.SupplierOrderStatusCompleted:            models.OrderStatusCompleted,
}

// ChangeStatus runs the full transition pipeline: resolve the document,
// reject blocked documents, check the requirement table, then persist the
// new status and append the history row. Notification fan-out happens after
// the update and never affects the result.
func ChangeStatus(ctx context.Context, input *ChangeStatusInput) (*models.DocumentRef, error) {
	logger := config.GetLogger()

	if input.DocumentId == "" {
		return nil, utils.NewValidationError("document_id", "document id is required")
	}

	var ref *models.DocumentRef
	var err error
	if input.DocumentKind != "" {
		kind, kindErr := models.ParseDocumentKind(input.DocumentKind)
		if kindErr != nil {
			return nil, utils.NewValidationError("document_kind", "invalid document kind")
		}
		ref, err = models.GetDocumentRef(ctx, kind, input.DocumentId)
	} else {
		ref, err = models.ResolveDocument(ctx, input.DocumentId)
	}
	if err != nil {
		return nil, err
	}

	targetStatus := input.TargetStatus
	if !models.ValidStatusForKind(ref.Kind, targetStatus) {
		return nil, utils.NewValidationError("target_status", "invalid status for document kind")
	}

	// Re-submitting an order for review routes by the measurement flag.
	if ref.Kind == models.DocumentKindOrder &&
		ref.Status == string(models.OrderStatusUnderReview) &&
		targetStatus == string(models.OrderStatusUnderReview) {
		if input.RequireMeasurement != nil && *input.RequireMeasurement {
			targetStatus = string(models.OrderStatusAwaitingMeasurement)
		} else {
			targetStatus = string(models.OrderStatusAwaitingInvoice)
		}
	}

	blocked, reason, err := IsBlocked(ctx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, utils.NewBlockedError(reason)
	}

	if err := CanTransition(ctx, ref.Kind, ref.ID, targetStatus); err != nil {
		return nil, err
	}

	oldStatus := ref.Status
	if err := persistStatusChange(ctx, ref, targetStatus, input.Notes); err != nil {
		return nil, err
	}

	// The order drives its chained invoice. A failed sync is logged, the
	// accepted order transition stands.
	if ref.Kind == models.DocumentKindOrder {
		if err := syncInvoiceStatus(ctx, ref.ID, models.OrderStatus(targetStatus)); err != nil {
			config.LogError(logger, "statusChange.go", "ChangeStatus", "syncInvoiceStatus", ref.ID, err)
		}
	}

	// A supplier order drives its parent order in the same way.
	if ref.Kind == models.DocumentKindSupplierOrder {
		if err := syncParentOrderStatus(ctx, ref.ID, models.SupplierOrderStatus(targetStatus)); err != nil {
			config.LogError(logger, "statusChange.go", "ChangeStatus", "syncParentOrderStatus", ref.ID, err)
		}
	}

	// Fire-and-forget: the status change is already committed.
	NotifyStatusChange(ctx, ref, oldStatus, targetStatus)

	return models.GetDocumentRef(ctx, ref.Kind, ref.ID)
}

// persistStatusChange applies the status update, then appends the history
// row. History is an audit aid: if the append fails after the status is
// already committed, the change stands and the failure is only logged.
func persistStatusChange(ctx context.Context, ref *models.DocumentRef, targetStatus string, notes string) error {
	table := tableFor(ref.Kind)
	if table == "" {
		return utils.NewIntegrityError("no table for document kind " + string(ref.Kind))
	}
	db := config.GetDB()

	err := db.WithContext(ctx).
		Table(table).
		Where("id = ?", ref.ID).
		Updates(map[string]interface{}{
			"status":     targetStatus,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}
	if err := models.CreateStatusHistory(ctx, db, ref.ID, ref.Kind, ref.Status, targetStatus, notes); err != nil {
		config.LogWarn(config.GetLogger(), "statusChange.go", "persistStatusChange", "CreateStatusHistory", ref.ID, err.Error())
	}
	return nil
}

func syncInvoiceStatus(ctx context.Context, orderId string, orderStatus models.OrderStatus) error {
	target, ok := orderInvoiceStatusSync[orderStatus]
	if !ok {
		return nil
	}

	order, err := models.GetOrder(ctx, orderId)
	if err != nil {
		return err
	}
	if order.InvoiceId == nil || *order.InvoiceId == "" {
		return nil
	}
	invoice, err := models.GetInvoice(ctx, *order.InvoiceId)
	if err != nil {
		return err
	}
	if invoice.Status == target {
		return nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("status", target).Error
	if err != nil {
		return err
	}
	if err := models.CreateStatusHistory(ctx, db, invoice.ID, models.DocumentKindInvoice, string(invoice.Status), string(target), "synced from order "+order.Number); err != nil {
		config.LogWarn(config.GetLogger(), "statusChange.go", "syncInvoiceStatus", "CreateStatusHistory", invoice.ID, err.Error())
	}
	return nil
}

// syncParentOrderStatus drives the parent order when a supplier order
// advances. The driven transition skips the manual-block check but still has
// to satisfy the order's field requirements, so an incomplete order stops
// the cascade here.
func syncParentOrderStatus(ctx context.Context, supplierOrderId string, status models.SupplierOrderStatus) error {
	target, ok := supplierOrderParentSync[status]
	if !ok {
		return nil
	}

	so, err := models.GetSupplierOrder(ctx, supplierOrderId)
	if err != nil {
		return err
	}
	if so.OrderId == nil || *so.OrderId == "" {
		return nil
	}
	ref, err := models.GetDocumentRef(ctx, models.DocumentKindOrder, *so.OrderId)
	if err != nil {
		return err
	}
	if ref.Status == string(target) {
		return nil
	}
	if err := CanTransition(ctx, models.DocumentKindOrder, ref.ID, string(target)); err != nil {
		return err
	}
	if err := persistStatusChange(ctx, ref, string(target), "synced from supplier order "+so.Number); err != nil {
		return err
	}
	return syncInvoiceStatus(ctx, ref.ID, target)
}

func tableFor(kind models.DocumentKind) string {
	switch kind {
	case models.DocumentKindQuote:
		return "quotes"
	case models.DocumentKindInvoice:
		return "invoices"
	case models.DocumentKindOrder:
		return "orders"
	case models.DocumentKindSupplierOrder:
		return "supplier_orders"
	}
	return ""
}
