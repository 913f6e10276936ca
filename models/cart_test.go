package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func cartLine(sku, model, color string, qty int, price string) CartItem {
	p, _ := decimal.NewFromString(price)
	return CartItem{Sku: sku, Model: model, Color: color, Quantity: qty, UnitPrice: p}
}

func TestEqualCart_IgnoresLineOrder(t *testing.T) {
	a := CartData{
		cartLine("D-100", "Classic", "white", 2, "12500.00"),
		cartLine("D-200", "Loft", "black", 1, "18900.00"),
	}
	b := CartData{
		cartLine("D-200", "Loft", "black", 1, "18900.00"),
		cartLine("D-100", "Classic", "white", 2, "12500.00"),
	}
	if !EqualCart(a, b) {
		t.Fatal("carts with the same lines in a different order must compare equal")
	}
}

func TestEqualCart_PriceTolerance(t *testing.T) {
	a := CartData{cartLine("D-100", "Classic", "white", 1, "12500.00")}
	within := CartData{cartLine("D-100", "Classic", "white", 1, "12500.009")}
	outside := CartData{cartLine("D-100", "Classic", "white", 1, "12500.02")}

	if !EqualCart(a, within) {
		t.Fatal("price drift under 0.01 must compare equal")
	}
	if EqualCart(a, outside) {
		t.Fatal("price drift over 0.01 must not compare equal")
	}
}

func TestEqualCart_QuantityAndKeyDiffer(t *testing.T) {
	a := CartData{cartLine("D-100", "Classic", "white", 1, "12500.00")}

	cases := map[string]CartData{
		"quantity":  {cartLine("D-100", "Classic", "white", 2, "12500.00")},
		"sku":       {cartLine("D-101", "Classic", "white", 1, "12500.00")},
		"model":     {cartLine("D-100", "Modern", "white", 1, "12500.00")},
		"color":     {cartLine("D-100", "Classic", "oak", 1, "12500.00")},
		"extra row": {cartLine("D-100", "Classic", "white", 1, "12500.00"), cartLine("D-200", "Loft", "black", 1, "100.00")},
	}
	for name, other := range cases {
		if EqualCart(a, other) {
			t.Errorf("%s mismatch must not compare equal", name)
		}
	}
}

func TestCartDataTotalAmount(t *testing.T) {
	cart := CartData{
		cartLine("D-100", "Classic", "white", 2, "12500.00"),
		cartLine("D-200", "Loft", "black", 1, "18900.50"),
	}
	want, _ := decimal.NewFromString("43900.50")
	if got := cart.TotalAmount(); !got.Equal(want) {
		t.Fatalf("TotalAmount = %s, want %s", got, want)
	}
}

func TestCartDataScanRoundTrip(t *testing.T) {
	cart := CartData{cartLine("D-100", "Classic", "white", 2, "12500.00")}
	raw, err := cart.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded CartData
	if err := decoded.Scan(raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !EqualCart(cart, decoded) {
		t.Fatalf("round trip changed the cart: %+v vs %+v", cart, decoded)
	}

	var empty CartData
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if empty != nil {
		t.Fatalf("Scan(nil) should leave the cart nil, got %+v", empty)
	}
}
