package cart

import (
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	"github.com/shopspring/decimal"
)

// WireTimeLayout is the create_datetime layout exchanged with the order service.
const WireTimeLayout = "2006-01-02 15:04:05.000"

// RawRecord is a product or cart row as delivered by an external flow, with
// fields under any of their known aliases. Only the Normalizer reads it.
type RawRecord map[string]any

// Line is one (item, unit) purchase intent held by the engine.
type Line struct {
	LineID        string
	ItemCode      string
	ItemName      string
	UnitCode      string
	Barcode       string
	Quantity      int
	UnitPrice     decimal.Decimal
	WarehouseCode string
	ShelfCode     string
	Ratio         string
	StandardValue string
	DivideValue   string
	TaxType       enums.TaxType
	Image         string
	CreatedAt     time.Time
}

// Amount is quantity × unit price.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) sameProduct(itemCode, unitCode string) bool {
	return l.ItemCode == itemCode && l.UnitCode == unitCode
}

// WireRecord is the canonical cart row sent to and read back from the order service.
type WireRecord struct {
	CreatorCode    string `json:"creator_code"`
	CustomerCode   string `json:"cust_code" validate:"required"`
	EmployeeCode   string `json:"emp_code"`
	LineID         string `json:"guid_code"`
	ItemCode       string `json:"item_code" validate:"required"`
	ItemName       string `json:"item_name"`
	UnitCode       string `json:"unit_code"`
	Barcode        string `json:"barcode"`
	Quantity       string `json:"qty" validate:"required,numeric"`
	Price          string `json:"price" validate:"omitempty,numeric"`
	WarehouseCode  string `json:"wh_code"`
	ShelfCode      string `json:"shelf_code"`
	Ratio          string `json:"ratio"`
	StandardValue  string `json:"stand_value"`
	DivideValue    string `json:"divide_value"`
	TaxType        string `json:"tax_type"`
	CreateDatetime string `json:"create_datetime"`
}

// Outcome is the result of a mutating engine operation.
type Outcome struct {
	Success     bool
	Message     string
	OrderNumber string
}

// State is a point-in-time copy of the engine's cart.
type State struct {
	Lines        []Line
	Loading      bool
	LastError    error
	CustomerCode string
}

// TotalQuantity sums the line quantities.
func (s State) TotalQuantity() int {
	return totalQuantity(s.Lines)
}

// TotalAmount sums quantity × unit price over every line.
func (s State) TotalAmount() decimal.Decimal {
	return totalAmount(s.Lines)
}

func totalQuantity(lines []Line) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

func totalAmount(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return total
}

// CheckoutInput holds the buyer-supplied checkout fields.
type CheckoutInput struct {
	Telephone           string `json:"telephone" validate:"max=32"`
	Remark              string `json:"remark" validate:"max=500"`
	DeliveryMethod      string `json:"send_type" validate:"omitempty,oneof=0 1"`
	DeliveryAddress     string `json:"address" validate:"max=500"`
	DeliveryAddressName string `json:"address_name" validate:"max=200"`
	EmployeeCode        string `json:"emp_code" validate:"max=32"`
}

// CheckoutResult carries the submitted order's number.
type CheckoutResult struct {
	OrderNumber string
}
