package models

import (
	"context"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/utils"
	"github.com/shopspring/decimal"
)

// DocumentRef is the kind-neutral view of any of the four document tables.
// The workflow operates on refs wherever it does not care which table a row
// lives in.
type DocumentRef struct {
	Kind             DocumentKind    `json:"kind"`
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	Status           string          `json:"status"`
	ClientId         *string         `json:"client_id"`
	ParentDocumentId *string         `json:"parent_document_id"`
	CartSessionId    string          `json:"cart_session_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CreatedAt        time.Time       `json:"created_at"`
}

func refFromQuote(q *Quote) *DocumentRef {
	return &DocumentRef{
		Kind:             DocumentKindQuote,
		ID:               q.ID,
		Number:           q.Number,
		Status:           string(q.Status),
		ClientId:         &q.ClientId,
		ParentDocumentId: q.ParentDocumentId,
		CartSessionId:    q.CartSessionId,
		TotalAmount:      q.TotalAmount,
		CreatedAt:        q.CreatedAt,
	}
}

func refFromInvoice(i *Invoice) *DocumentRef {
	return &DocumentRef{
		Kind:             DocumentKindInvoice,
		ID:               i.ID,
		Number:           i.Number,
		Status:           string(i.Status),
		ClientId:         &i.ClientId,
		ParentDocumentId: i.ParentDocumentId,
		CartSessionId:    i.CartSessionId,
		TotalAmount:      i.TotalAmount,
		CreatedAt:        i.CreatedAt,
	}
}

func refFromOrder(o *Order) *DocumentRef {
	return &DocumentRef{
		Kind:             DocumentKindOrder,
		ID:               o.ID,
		Number:           o.Number,
		Status:           string(o.Status),
		ClientId:         &o.ClientId,
		ParentDocumentId: o.ParentDocumentId,
		CartSessionId:    o.CartSessionId,
		TotalAmount:      o.TotalAmount,
		CreatedAt:        o.CreatedAt,
	}
}

func refFromSupplierOrder(s *SupplierOrder) *DocumentRef {
	return &DocumentRef{
		Kind:             DocumentKindSupplierOrder,
		ID:               s.ID,
		Number:           s.Number,
		Status:           string(s.Status),
		ParentDocumentId: s.ParentDocumentId,
		CartSessionId:    s.CartSessionId,
		TotalAmount:      s.TotalAmount,
		CreatedAt:        s.CreatedAt,
	}
}

// GetDocumentRef fetches a document of a known kind as a ref.
func GetDocumentRef(ctx context.Context, kind DocumentKind, id string) (*DocumentRef, error) {
	switch kind {
	case DocumentKindQuote:
		q, err := utils.FetchModel[Quote](ctx, id)
		if err != nil {
			return nil, utils.NewNotFoundError("quote not found")
		}
		return refFromQuote(q), nil
	case DocumentKindInvoice:
		i, err := utils.FetchModel[Invoice](ctx, id)
		if err != nil {
			return nil, utils.NewNotFoundError("invoice not found")
		}
		return refFromInvoice(i), nil
	case DocumentKindOrder:
		o, err := utils.FetchModel[Order](ctx, id)
		if err != nil {
			return nil, utils.NewNotFoundError("order not found")
		}
		return refFromOrder(o), nil
	case DocumentKindSupplierOrder:
		s, err := utils.FetchModel[SupplierOrder](ctx, id)
		if err != nil {
			return nil, utils.NewNotFoundError("supplier order not found")
		}
		return refFromSupplierOrder(s), nil
	}
	return nil, utils.NewValidationError("kind", "invalid document kind")
}

// ResolveDocument discovers a document's kind by probing each table in
// ProbeOrder and returns the first hit. Ids are uuids, so a cross-kind hit
// on the wrong table cannot happen in practice; a miss everywhere is a
// NotFound.
func ResolveDocument(ctx context.Context, id string) (*DocumentRef, error) {
	for _, kind := range ProbeOrder {
		ref, err := GetDocumentRef(ctx, kind, id)
		if err == nil {
			return ref, nil
		}
		if utils.ErrorCode(err) != utils.ErrCodeNotFound {
			return nil, err
		}
	}
	return nil, utils.NewNotFoundError("document not found")
}

// ListRefsByParent returns all documents of kind whose parent pointer is id.
func ListRefsByParent(ctx context.Context, kind DocumentKind, parentId string) ([]*DocumentRef, error) {
	db := config.GetDB()
	var refs []*DocumentRef

	switch kind {
	case DocumentKindQuote:
		var rows []*Quote
		if err := db.WithContext(ctx).Where("parent_document_id = ?", parentId).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromQuote(row))
		}
	case DocumentKindInvoice:
		var rows []*Invoice
		if err := db.WithContext(ctx).Where("parent_document_id = ?", parentId).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromInvoice(row))
		}
	case DocumentKindOrder:
		var rows []*Order
		if err := db.WithContext(ctx).Where("parent_document_id = ?", parentId).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromOrder(row))
		}
	case DocumentKindSupplierOrder:
		var rows []*SupplierOrder
		if err := db.WithContext(ctx).Where("parent_document_id = ?", parentId).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromSupplierOrder(row))
		}
	default:
		return nil, utils.NewValidationError("kind", "invalid document kind")
	}

	return refs, nil
}

// GetLinkField reads a named pointer column from a document row. The link
// audit is configured with column names per document pair, so access is by
// column rather than struct field.
func GetLinkField(ctx context.Context, kind DocumentKind, id string, column string) (*string, error) {
	db := config.GetDB()
	var value *string
	err := db.WithContext(ctx).
		Table(tableNameForKind(kind)).
		Where("id = ?", id).
		Select(column).
		Scan(&value).Error
	if err != nil {
		return nil, err
	}
	return value, nil
}

// SetLinkField rewrites a pointer column. Used only by link repair.
func SetLinkField(ctx context.Context, kind DocumentKind, id string, column string, value string) error {
	db := config.GetDB()
	return db.WithContext(ctx).
		Table(tableNameForKind(kind)).
		Where("id = ?", id).
		Update(column, value).Error
}

// CountDocuments returns per-kind row counts, used by the full-graph audit
// summary.
func CountDocuments(ctx context.Context, kind DocumentKind) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Table(tableNameForKind(kind)).Count(&count).Error
	return count, err
}

// ListAllRefs streams every document of a kind as refs. The audit walks all
// four kinds with it.
func ListAllRefs(ctx context.Context, kind DocumentKind) ([]*DocumentRef, error) {
	db := config.GetDB()
	var refs []*DocumentRef

	switch kind {
	case DocumentKindQuote:
		var rows []*Quote
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromQuote(row))
		}
	case DocumentKindInvoice:
		var rows []*Invoice
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromInvoice(row))
		}
	case DocumentKindOrder:
		var rows []*Order
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromOrder(row))
		}
	case DocumentKindSupplierOrder:
		var rows []*SupplierOrder
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			refs = append(refs, refFromSupplierOrder(row))
		}
	default:
		return nil, utils.NewValidationError("kind", "invalid document kind")
	}

	return refs, nil
}
