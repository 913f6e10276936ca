package workflow

import (
	"context"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/utils"
)

// ConvertQuoteToOrder accepts a quote and materializes it as an order in the
// chain. Idempotent: a quote already carrying an order pointer returns that
// order.
func ConvertQuoteToOrder(ctx context.Context, quoteId string) (*models.Order, error) {
	logger := config.GetLogger()

	quote, err := models.GetQuote(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.Status == models.QuoteStatusRejected {
		return nil, utils.NewBlockedError("rejected quote cannot be converted")
	}
	if quote.OrderId != nil && *quote.OrderId != "" {
		return models.GetOrder(ctx, *quote.OrderId)
	}

	lock, _ := utils.ObtainDocumentLock(ctx, "quoteconv", quote.ID, "quoteConversion.go", "ConvertQuoteToOrder")
	defer utils.ReleaseDocumentLock(ctx, lock)

	// Re-check under the lock.
	quote, err = models.GetQuote(ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.OrderId != nil && *quote.OrderId != "" {
		return models.GetOrder(ctx, *quote.OrderId)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		ClientId:         quote.ClientId,
		Items:            quote.CartData,
		CartSessionId:    quote.CartSessionId,
		ParentDocumentId: &quote.ID,
		Notes:            quote.Notes,
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ?", quote.ID).
		Updates(map[string]interface{}{
			"order_id": order.ID,
			"status":   models.QuoteStatusAccepted,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("quote_id", quote.ID).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.CreateStatusHistory(ctx, tx, quote.ID, models.DocumentKindQuote, string(quote.Status), string(models.QuoteStatusAccepted), "quote accepted, order "+order.Number+" created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	quoteRef, refErr := models.GetDocumentRef(ctx, models.DocumentKindQuote, quote.ID)
	if refErr != nil {
		config.LogError(logger, "quoteConversion.go", "ConvertQuoteToOrder", "GetDocumentRef", quote.ID, refErr)
	} else {
		NotifyStatusChange(ctx, quoteRef, string(quote.Status), string(models.QuoteStatusAccepted))
	}

	return models.GetOrder(ctx, order.ID)
}
