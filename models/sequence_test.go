package models

import (
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestParseSequenceNumber(t *testing.T) {
	cases := []struct {
		kind   DocumentKind
		number string
		want   int64
		ok     bool
	}{
		{DocumentKindOrder, "Заказ-1042", 1042, true},
		{DocumentKindInvoice, "Счет-7", 7, true},
		{DocumentKindQuote, "КП-310", 310, true},
		{DocumentKindSupplierOrder, "ЗаказПоставщика-55", 55, true},
		// wrong prefix for the kind
		{DocumentKindOrder, "Счет-1042", 0, false},
		// legacy import that never followed the scheme
		{DocumentKindOrder, "ORD/2019/0042", 0, false},
		{DocumentKindOrder, "Заказ-", 0, false},
		{DocumentKindOrder, "Заказ-12x", 0, false},
		{DocumentKindOrder, "", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseSequenceNumber(tc.kind, tc.number)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseSequenceNumber(%s, %q) = (%d, %v), want (%d, %v)",
				tc.kind, tc.number, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatDocumentNumberRoundTrip(t *testing.T) {
	for _, kind := range ProbeOrder {
		number := FormatDocumentNumber(kind, 99)
		seq, ok := ParseSequenceNumber(kind, number)
		if !ok || seq != 99 {
			t.Errorf("round trip failed for %s: %q -> (%d, %v)", kind, number, seq, ok)
		}
	}
}

func TestFormatDocumentNumberPrefixes(t *testing.T) {
	if got := FormatDocumentNumber(DocumentKindOrder, 1); got != "Заказ-1" {
		t.Errorf("order number = %q", got)
	}
	if got := FormatDocumentNumber(DocumentKindSupplierOrder, 12); got != "ЗаказПоставщика-12" {
		t.Errorf("supplier order number = %q", got)
	}
}

func TestIsDuplicateNumberError(t *testing.T) {
	numberClash := &mysqlDriver.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'Заказ-12' for key 'orders.idx_orders_number'",
	}
	sessionClash := &mysqlDriver.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'abc-def' for key 'supplier_orders.idx_supplier_parent_session'",
	}
	other := &mysqlDriver.MySQLError{Number: 1452, Message: "foreign key constraint fails"}

	if !IsDuplicateNumberError(numberClash) {
		t.Error("number index collision must be retried as a number conflict")
	}
	if IsDuplicateNumberError(sessionClash) {
		t.Error("session index collision must not be treated as a number conflict")
	}
	if IsDuplicateNumberError(other) {
		t.Error("non-1062 errors are not duplicates")
	}
	if !IsDuplicateSessionError(sessionClash) {
		t.Error("session index collision must be detected by IsDuplicateSessionError")
	}
	if IsDuplicateSessionError(numberClash) {
		t.Error("number collision is not a session collision")
	}
}
