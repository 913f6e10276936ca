package models

import (
	"testing"
)

func hasRole(roles []NotificationRecipientRole, want NotificationRecipientRole) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func TestRolesForStatusChange_OrderTransitions(t *testing.T) {
	cases := []struct {
		status string
		want   []NotificationRecipientRole
	}{
		{string(OrderStatusNewPlanned), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{string(OrderStatusUnderReview), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{string(OrderStatusAwaitingMeasurement), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{string(OrderStatusAwaitingInvoice), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{string(OrderStatusReadyForProduction), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{string(OrderStatusCompleted), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor, RecipientRoleManager}},
		{string(OrderStatusReturnedToComplectation), []NotificationRecipientRole{RecipientRoleComplectator}},
		{string(OrderStatusCancelled), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
	}
	for _, tc := range cases {
		got := RolesForStatusChange(DocumentKindOrder, tc.status)
		if len(got) != len(tc.want) {
			t.Errorf("order->%s: got %v, want %v", tc.status, got, tc.want)
			continue
		}
		for _, w := range tc.want {
			if !hasRole(got, w) {
				t.Errorf("order->%s: missing role %s in %v", tc.status, w, got)
			}
		}
	}
}

func TestRolesForStatusChange_UnlistedNotifiesNobody(t *testing.T) {
	if got := RolesForStatusChange(DocumentKindSupplierOrder, string(SupplierOrderStatusPending)); len(got) != 0 {
		t.Errorf("supplier PENDING should notify nobody, got %v", got)
	}
	if got := RolesForStatusChange(DocumentKindInvoice, string(InvoiceStatusDraft)); len(got) != 0 {
		t.Errorf("invoice DRAFT should notify nobody, got %v", got)
	}
	if got := RolesForStatusChange(DocumentKind("bogus"), "SENT"); got != nil {
		t.Errorf("unknown kind should notify nobody, got %v", got)
	}
}

func TestRolesForStatusChange_ClientOnlyTransitions(t *testing.T) {
	// SENT goes to the client alone; the in-app dispatcher skips the client
	// role, so these transitions produce no inbox rows.
	for _, kind := range []DocumentKind{DocumentKindQuote, DocumentKindInvoice} {
		got := RolesForStatusChange(kind, "SENT")
		if len(got) != 1 || got[0] != RecipientRoleClient {
			t.Errorf("%s->SENT: got %v, want client only", kind, got)
		}
	}
}

func TestRolesForStatusChange_StaffRouting(t *testing.T) {
	cases := []struct {
		kind   DocumentKind
		status string
		want   []NotificationRecipientRole
	}{
		{DocumentKindQuote, string(QuoteStatusAccepted), []NotificationRecipientRole{RecipientRoleComplectator}},
		{DocumentKindQuote, string(QuoteStatusRejected), []NotificationRecipientRole{RecipientRoleComplectator}},
		{DocumentKindInvoice, string(InvoiceStatusPaid), []NotificationRecipientRole{RecipientRoleExecutor, RecipientRoleManager}},
		{DocumentKindSupplierOrder, string(SupplierOrderStatusOrdered), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{DocumentKindSupplierOrder, string(SupplierOrderStatusReceivedFromSupplier), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
		{DocumentKindSupplierOrder, string(SupplierOrderStatusCompleted), []NotificationRecipientRole{RecipientRoleComplectator, RecipientRoleExecutor}},
	}
	for _, tc := range cases {
		got := RolesForStatusChange(tc.kind, tc.status)
		if len(got) != len(tc.want) {
			t.Errorf("%s->%s: got %v, want %v", tc.kind, tc.status, got, tc.want)
			continue
		}
		for _, w := range tc.want {
			if !hasRole(got, w) {
				t.Errorf("%s->%s: missing role %s in %v", tc.kind, tc.status, w, got)
			}
		}
	}
}

func TestStatusChangeMessage(t *testing.T) {
	msg := StatusChangeMessage(DocumentKindOrder, "Заказ-42", "NEW_PLANNED", "UNDER_REVIEW")
	want := "order Заказ-42: NEW_PLANNED -> UNDER_REVIEW"
	if msg != want {
		t.Fatalf("StatusChangeMessage = %q, want %q", msg, want)
	}
}
