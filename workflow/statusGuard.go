package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

// transitionRequirements maps (kind, target status) to the fields that must
// be non-empty before the transition is allowed. Unlisted targets are
// unconditionally allowed; only modeled statuses are guarded.
var transitionRequirements = map[models.DocumentKind]map[string][]string{
	models.DocumentKindOrder: {
		string(models.OrderStatusUnderReview):          {"project_file_url"},
		string(models.OrderStatusAwaitingMeasurement):  {"project_file_url"},
		string(models.OrderStatusAwaitingInvoice):      {"project_file_url", "door_dimensions"},
		string(models.OrderStatusReadyForProduction):   {"project_file_url", "door_dimensions"},
		string(models.OrderStatusCompleted):            {"project_file_url", "door_dimensions"},
	},
	models.DocumentKindSupplierOrder: {
		string(models.SupplierOrderStatusOrdered):              {"supplier_name"},
		string(models.SupplierOrderStatusReceivedFromSupplier): {"supplier_name"},
		string(models.SupplierOrderStatusCompleted):            {"supplier_name"},
	},
}

func orderFieldPresent(order *models.Order, field string) bool {
	switch field {
	case "project_file_url":
		return order.ProjectFileURL != ""
	case "door_dimensions":
		return len(order.DoorDimensions) > 0
	}
	return false
}

func supplierOrderFieldPresent(so *models.SupplierOrder, field string) bool {
	switch field {
	case "supplier_name":
		return so.SupplierName != ""
	}
	return false
}

// CanTransition checks the requirement table for (kind, target). The
// returned error names the first missing field so the caller can fix exactly
// that and retry.
func CanTransition(ctx context.Context, kind models.DocumentKind, id string, targetStatus string) error {
	byTarget, ok := transitionRequirements[kind]
	if !ok {
		return nil
	}
	required, ok := byTarget[targetStatus]
	if !ok {
		return nil
	}

	switch kind {
	case models.DocumentKindOrder:
		order, err := models.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		for _, field := range required {
			if !orderFieldPresent(order, field) {
				return utils.NewValidationError(field, fmt.Sprintf("%s is required for status %s", field, targetStatus))
			}
		}
	case models.DocumentKindSupplierOrder:
		so, err := models.GetSupplierOrder(ctx, id)
		if err != nil {
			return err
		}
		for _, field := range required {
			if !supplierOrderFieldPresent(so, field) {
				return utils.NewValidationError(field, fmt.Sprintf("%s is required for status %s", field, targetStatus))
			}
		}
	}

	return nil
}

// IsBlocked reports documents whose status is under automatic control and
// must not be edited by hand. It runs before CanTransition and rejects
// outright when true, whatever the field completeness.
func IsBlocked(ctx context.Context, kind models.DocumentKind, id string) (bool, string, error) {
	switch kind {
	case models.DocumentKindInvoice:
		// An invoice chained to an order mirrors the order's lifecycle.
		invoice, err := models.GetInvoice(ctx, id)
		if err != nil {
			return false, "", err
		}
		if invoice.OrderId != nil && *invoice.OrderId != "" {
			return true, "invoice status follows its order; change the order status instead", nil
		}
	case models.DocumentKindQuote:
		// A quote whose chain already produced a supplier order is settled.
		quote, err := models.GetQuote(ctx, id)
		if err != nil {
			return false, "", err
		}
		if quote.OrderId != nil && *quote.OrderId != "" {
			order, err := models.GetOrder(ctx, *quote.OrderId)
			if err == nil && order.SupplierOrderId != nil && *order.SupplierOrderId != "" {
				return true, "quote is locked: a supplier order already exists downstream", nil
			}
		}
	}
	return false, "", nil
}
