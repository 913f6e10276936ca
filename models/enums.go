package models

import "errors"

type DocumentKind string

const (
	DocumentKindQuote         DocumentKind = "quote"
	DocumentKindInvoice       DocumentKind = "invoice"
	DocumentKindOrder         DocumentKind = "order"
	DocumentKindSupplierOrder DocumentKind = "supplier_order"
)

// ProbeOrder is the fixed order in which an opaque id is matched against the
// document tables. Ids are uuids, globally unique across kinds, so the first
// hit wins.
var ProbeOrder = []DocumentKind{
	DocumentKindInvoice,
	DocumentKindQuote,
	DocumentKindOrder,
	DocumentKindSupplierOrder,
}

func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(s) {
	case DocumentKindQuote, DocumentKindInvoice, DocumentKindOrder, DocumentKindSupplierOrder:
		return DocumentKind(s), nil
	}
	return "", errors.New("invalid document kind")
}

// Human-readable number prefixes, one per kind.
const (
	NumberPrefixQuote         = "КП-"
	NumberPrefixInvoice       = "Счет-"
	NumberPrefixOrder         = "Заказ-"
	NumberPrefixSupplierOrder = "ЗаказПоставщика-"
)

func (k DocumentKind) NumberPrefix() string {
	switch k {
	case DocumentKindQuote:
		return NumberPrefixQuote
	case DocumentKindInvoice:
		return NumberPrefixInvoice
	case DocumentKindOrder:
		return NumberPrefixOrder
	case DocumentKindSupplierOrder:
		return NumberPrefixSupplierOrder
	}
	return ""
}

type OrderStatus string

const (
	OrderStatusNewPlanned               OrderStatus = "NEW_PLANNED"
	OrderStatusUnderReview              OrderStatus = "UNDER_REVIEW"
	OrderStatusAwaitingMeasurement      OrderStatus = "AWAITING_MEASUREMENT"
	OrderStatusAwaitingInvoice          OrderStatus = "AWAITING_INVOICE"
	OrderStatusReadyForProduction       OrderStatus = "READY_FOR_PRODUCTION"
	OrderStatusCompleted                OrderStatus = "COMPLETED"
	OrderStatusReturnedToComplectation  OrderStatus = "RETURNED_TO_COMPLECTATION"
	OrderStatusCancelled                OrderStatus = "CANCELLED"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusNewPlanned:              true,
	OrderStatusUnderReview:             true,
	OrderStatusAwaitingMeasurement:     true,
	OrderStatusAwaitingInvoice:         true,
	OrderStatusReadyForProduction:      true,
	OrderStatusCompleted:               true,
	OrderStatusReturnedToComplectation: true,
	OrderStatusCancelled:               true,
}

func (s OrderStatus) Valid() bool { return orderStatuses[s] }

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
)

var quoteStatuses = map[QuoteStatus]bool{
	QuoteStatusDraft:    true,
	QuoteStatusSent:     true,
	QuoteStatusAccepted: true,
	QuoteStatusRejected: true,
}

func (s QuoteStatus) Valid() bool { return quoteStatuses[s] }

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

var invoiceStatuses = map[InvoiceStatus]bool{
	InvoiceStatusDraft:     true,
	InvoiceStatusSent:      true,
	InvoiceStatusPaid:      true,
	InvoiceStatusCancelled: true,
}

func (s InvoiceStatus) Valid() bool { return invoiceStatuses[s] }

type SupplierOrderStatus string

const (
	SupplierOrderStatusPending              SupplierOrderStatus = "PENDING"
	SupplierOrderStatusOrdered              SupplierOrderStatus = "ORDERED"
	SupplierOrderStatusReceivedFromSupplier SupplierOrderStatus = "RECEIVED_FROM_SUPPLIER"
	SupplierOrderStatusCompleted            SupplierOrderStatus = "COMPLETED"
)

var supplierOrderStatuses = map[SupplierOrderStatus]bool{
	SupplierOrderStatusPending:              true,
	SupplierOrderStatusOrdered:              true,
	SupplierOrderStatusReceivedFromSupplier: true,
	SupplierOrderStatusCompleted:            true,
}

func (s SupplierOrderStatus) Valid() bool { return supplierOrderStatuses[s] }

// ValidStatusForKind reports whether value is a member of the kind's status set.
func ValidStatusForKind(kind DocumentKind, value string) bool {
	switch kind {
	case DocumentKindQuote:
		return QuoteStatus(value).Valid()
	case DocumentKindInvoice:
		return InvoiceStatus(value).Valid()
	case DocumentKindOrder:
		return OrderStatus(value).Valid()
	case DocumentKindSupplierOrder:
		return SupplierOrderStatus(value).Valid()
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin        UserRole = "ADMIN"
	UserRoleManager      UserRole = "MANAGER"
	UserRoleComplectator UserRole = "COMPLECTATOR"
	UserRoleExecutor     UserRole = "EXECUTOR"
)

var userRoles = map[UserRole]bool{
	UserRoleAdmin:        true,
	UserRoleManager:      true,
	UserRoleComplectator: true,
	UserRoleExecutor:     true,
}

func (r UserRole) Valid() bool { return userRoles[r] }

// NotificationRecipientRole labels who a status notification is addressed to.
// "client" recipients have no user account and are skipped by the in-app
// dispatcher, the external channel handles them.
type NotificationRecipientRole string

const (
	RecipientRoleClient       NotificationRecipientRole = "client"
	RecipientRoleManager      NotificationRecipientRole = "manager"
	RecipientRoleComplectator NotificationRecipientRole = "complectator"
	RecipientRoleExecutor     NotificationRecipientRole = "executor"
)

type HistoryAction string

const (
	HistoryActionCreate       HistoryAction = "create"
	HistoryActionStatusChange HistoryAction = "status_change"
	HistoryActionUpdate       HistoryAction = "update"
	HistoryActionLinkRepair   HistoryAction = "link_repair"
	HistoryActionDelete       HistoryAction = "delete"
)
