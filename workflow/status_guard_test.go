package workflow

import (
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/domeotech/doors_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func TestOrderFieldPresent(t *testing.T) {
	empty := &models.Order{}
	if orderFieldPresent(empty, "project_file_url") {
		t.Error("empty project file url must read as absent")
	}
	if orderFieldPresent(empty, "door_dimensions") {
		t.Error("nil dimensions must read as absent")
	}
	if orderFieldPresent(empty, "no_such_field") {
		t.Error("unknown fields must read as absent")
	}

	filled := &models.Order{
		ProjectFileURL: "https://storage.googleapis.com/doors/orders/abc/project.pdf",
		DoorDimensions: models.DoorDimensions{{Width: 800, Height: 2000}},
	}
	if !orderFieldPresent(filled, "project_file_url") {
		t.Error("set project file url must read as present")
	}
	if !orderFieldPresent(filled, "door_dimensions") {
		t.Error("non-empty dimensions must read as present")
	}
}

func TestSupplierOrderFieldPresent(t *testing.T) {
	if supplierOrderFieldPresent(&models.SupplierOrder{}, "supplier_name") {
		t.Error("empty supplier name must read as absent")
	}
	if !supplierOrderFieldPresent(&models.SupplierOrder{SupplierName: "Фабрика Дверей"}, "supplier_name") {
		t.Error("set supplier name must read as present")
	}
}

func TestTransitionRequirementsTable(t *testing.T) {
	requires := func(kind models.DocumentKind, status string, field string) bool {
		for _, f := range transitionRequirements[kind][status] {
			if f == field {
				return true
			}
		}
		return false
	}

	// Review and measurement only need the project file; invoicing and
	// production additionally need measured dimensions.
	for _, status := range []models.OrderStatus{models.OrderStatusUnderReview, models.OrderStatusAwaitingMeasurement} {
		if !requires(models.DocumentKindOrder, string(status), "project_file_url") {
			t.Errorf("%s must require project_file_url", status)
		}
		if requires(models.DocumentKindOrder, string(status), "door_dimensions") {
			t.Errorf("%s must not require door_dimensions yet", status)
		}
	}
	for _, status := range []models.OrderStatus{models.OrderStatusAwaitingInvoice, models.OrderStatusReadyForProduction, models.OrderStatusCompleted} {
		if !requires(models.DocumentKindOrder, string(status), "project_file_url") ||
			!requires(models.DocumentKindOrder, string(status), "door_dimensions") {
			t.Errorf("%s must require project_file_url and door_dimensions", status)
		}
	}

	// Cancellation and return are always possible.
	for _, status := range []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusReturnedToComplectation, models.OrderStatusNewPlanned} {
		if len(transitionRequirements[models.DocumentKindOrder][string(status)]) != 0 {
			t.Errorf("%s must be unconditional", status)
		}
	}

	for _, status := range []models.SupplierOrderStatus{
		models.SupplierOrderStatusOrdered,
		models.SupplierOrderStatusReceivedFromSupplier,
		models.SupplierOrderStatusCompleted,
	} {
		if !requires(models.DocumentKindSupplierOrder, string(status), "supplier_name") {
			t.Errorf("supplier order %s must require supplier_name", status)
		}
	}

	// Quotes and invoices carry no field requirements at all.
	if len(transitionRequirements[models.DocumentKindQuote]) != 0 {
		t.Error("quote transitions must be unguarded")
	}
	if len(transitionRequirements[models.DocumentKindInvoice]) != 0 {
		t.Error("invoice transitions must be unguarded")
	}
}

func TestOrderInvoiceStatusSyncTable(t *testing.T) {
	cases := []struct {
		order   models.OrderStatus
		invoice models.InvoiceStatus
		synced  bool
	}{
		{models.OrderStatusNewPlanned, models.InvoiceStatusDraft, true},
		{models.OrderStatusUnderReview, models.InvoiceStatusDraft, true},
		{models.OrderStatusAwaitingMeasurement, models.InvoiceStatusSent, true},
		{models.OrderStatusAwaitingInvoice, models.InvoiceStatusSent, true},
		{models.OrderStatusCompleted, models.InvoiceStatusPaid, true},
		{models.OrderStatusCancelled, models.InvoiceStatusCancelled, true},
		{models.OrderStatusReadyForProduction, "", false},
		{models.OrderStatusReturnedToComplectation, "", false},
	}
	for _, tc := range cases {
		got, ok := orderInvoiceStatusSync[tc.order]
		if ok != tc.synced {
			t.Errorf("sync[%s] present=%v, want %v", tc.order, ok, tc.synced)
			continue
		}
		if ok && got != tc.invoice {
			t.Errorf("sync[%s] = %s, want %s", tc.order, got, tc.invoice)
		}
	}
}

func TestChangeStatusInputBindsWithoutDocumentId(t *testing.T) {
	// Status routes fill DocumentId from the :id path param after binding,
	// so a body carrying only the target status must bind cleanly.
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", strings.NewReader(`{"target_status":"SENT"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var input ChangeStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		t.Fatalf("ShouldBindJSON: %v", err)
	}
	if input.TargetStatus != "SENT" {
		t.Fatalf("TargetStatus = %q, want SENT", input.TargetStatus)
	}
}

func TestSupplierOrderParentSyncTable(t *testing.T) {
	cases := []struct {
		supplier models.SupplierOrderStatus
		order    models.OrderStatus
		synced   bool
	}{
		{models.SupplierOrderStatusPending, "", false},
		{models.SupplierOrderStatusOrdered, "", false},
		{models.SupplierOrderStatusReceivedFromSupplier, models.OrderStatusReadyForProduction, true},
		{models.SupplierOrderStatusCompleted, models.OrderStatusCompleted, true},
	}
	for _, tc := range cases {
		got, ok := supplierOrderParentSync[tc.supplier]
		if ok != tc.synced {
			t.Errorf("parentSync[%s] present=%v, want %v", tc.supplier, ok, tc.synced)
			continue
		}
		if ok && got != tc.order {
			t.Errorf("parentSync[%s] = %s, want %s", tc.supplier, got, tc.order)
		}
	}
}

func TestBuildSupplierOrderTotals(t *testing.T) {
	price := decimal.NewFromInt(10000)
	parent := &models.DocumentRef{
		Kind:        models.DocumentKindOrder,
		ID:          "parent-1",
		TotalAmount: decimal.NewFromInt(25000),
	}

	withItems := buildSupplierOrder(parent, "session-1", &models.NewSupplierOrder{
		Items: models.CartData{{Sku: "D-100", Quantity: 2, UnitPrice: price}},
	})
	if !withItems.TotalAmount.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("total from items = %s, want 20000", withItems.TotalAmount)
	}
	if withItems.CartSessionId != "session-1" {
		t.Errorf("session = %q", withItems.CartSessionId)
	}

	withoutItems := buildSupplierOrder(parent, "session-2", nil)
	if !withoutItems.TotalAmount.Equal(parent.TotalAmount) {
		t.Errorf("total without items = %s, want parent total %s", withoutItems.TotalAmount, parent.TotalAmount)
	}
	if withoutItems.ParentDocumentId == nil || *withoutItems.ParentDocumentId != parent.ID {
		t.Error("parent pointer must be set")
	}
}
