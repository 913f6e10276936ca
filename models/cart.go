package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CartItem is one priced line of a checkout snapshot. Documents keep the
// snapshot as-is; totals are always recomputed from it, never trusted from
// the client.
type CartItem struct {
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Model     string          `json:"model"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CartData []CartItem

// Value/Scan let gorm persist the snapshot as a JSON column.
func (c CartData) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *CartData) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported cart data column type")
	}
	if len(data) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(data, c)
}

// TotalAmount sums quantity * unit_price over all lines.
func (c CartData) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// priceTolerance absorbs rounding drift between the pricing engine and the
// stored snapshot when comparing carts.
var priceTolerance = decimal.NewFromFloat(0.01)

type normalizedItem struct {
	key       string
	quantity  int
	unitPrice decimal.Decimal
}

func (c CartData) normalized() []normalizedItem {
	items := make([]normalizedItem, 0, len(c))
	for _, item := range c {
		key := strings.ToLower(strings.TrimSpace(item.Sku)) + "|" +
			strings.ToLower(strings.TrimSpace(item.Model)) + "|" +
			strings.ToLower(strings.TrimSpace(item.Color))
		items = append(items, normalizedItem{
			key:       key,
			quantity:  item.Quantity,
			unitPrice: item.UnitPrice,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })
	return items
}

// EqualCart reports whether two snapshots describe the same purchase: same
// normalized line set, same quantities, unit prices within tolerance. Used
// for duplicate checkout detection.
func EqualCart(a, b CartData) bool {
	na, nb := a.normalized(), b.normalized()
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i].key != nb[i].key || na[i].quantity != nb[i].quantity {
			return false
		}
		if na[i].unitPrice.Sub(nb[i].unitPrice).Abs().GreaterThan(priceTolerance) {
			return false
		}
	}
	return true
}
