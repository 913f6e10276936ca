package reports

import (
	"bytes"
	"context"
	"fmt"

	"bitbucket.org/domeotech/doors_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// BuildSupplierOrderExcel renders one supplier order with its cart lines as
// an xlsx workbook, the format the supplier-facing managers send out.
func BuildSupplierOrderExcel(ctx context.Context, supplierOrderId string) (*bytes.Buffer, string, error) {
	so, err := models.GetSupplierOrder(ctx, supplierOrderId)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, "", err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Number")
	f.SetCellValue(sheetName, "B1", so.Number)
	f.SetCellValue(sheetName, "A2", "Supplier")
	f.SetCellValue(sheetName, "B2", so.SupplierName)
	f.SetCellValue(sheetName, "A3", "Status")
	f.SetCellValue(sheetName, "B3", string(so.Status))
	f.SetCellValue(sheetName, "A4", "Total")
	f.SetCellValue(sheetName, "B4", so.TotalAmount.StringFixed(2))

	f.SetCellValue(sheetName, "A6", "Sku")
	f.SetCellValue(sheetName, "B6", "Name")
	f.SetCellValue(sheetName, "C6", "Model")
	f.SetCellValue(sheetName, "D6", "Size")
	f.SetCellValue(sheetName, "E6", "Color")
	f.SetCellValue(sheetName, "F6", "Quantity")
	f.SetCellValue(sheetName, "G6", "UnitPrice")
	f.SetCellValue(sheetName, "H6", "LineTotal")

	// Add data
	for i, item := range so.CartData {
		row := fmt.Sprint(i + 7)
		lineTotal := item.UnitPrice.Mul(decimalFromInt(item.Quantity))
		f.SetCellValue(sheetName, "A"+row, item.Sku)
		f.SetCellValue(sheetName, "B"+row, item.Name)
		f.SetCellValue(sheetName, "C"+row, item.Model)
		f.SetCellValue(sheetName, "D"+row, fmt.Sprintf("%dx%d", item.Width, item.Height))
		f.SetCellValue(sheetName, "E"+row, item.Color)
		f.SetCellValue(sheetName, "F"+row, item.Quantity)
		f.SetCellValue(sheetName, "G"+row, item.UnitPrice.StringFixed(2))
		f.SetCellValue(sheetName, "H"+row, lineTotal.StringFixed(2))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("supplier_order_%s.xlsx", so.Number)
	return &buf, filename, nil
}
