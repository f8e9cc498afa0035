package checkout

import (
	"strconv"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	docDateLayout = "2006-01-02"
	docTimeLayout = "15:04"
)

// OrderLine is one submitted line with its unrounded total.
type OrderLine struct {
	ItemCode      string
	ItemName      string
	Barcode       string
	UnitCode      string
	Quantity      int
	UnitPrice     decimal.Decimal
	LineTotal     decimal.Decimal
	WarehouseCode string
	ShelfCode     string
	Ratio         string
	StandardValue string
	DivideValue   string
	TaxType       enums.TaxType
}

// OrderDocument is the payload built for one checkout attempt.
type OrderDocument struct {
	CustomerCode        string
	EmployeeCode        string
	DocDate             string
	DocTime             string
	DocNumber           string
	Lines               []OrderLine
	TotalAmount         decimal.Decimal
	TotalTaxExempt      decimal.Decimal
	TotalTaxed          decimal.Decimal
	Telephone           string
	Remark              string
	DeliveryMethod      enums.DeliveryMethod
	DeliveryAddress     string
	DeliveryAddressName string
}

// WireOrderLine is the /sendorder item shape.
type WireOrderLine struct {
	ItemCode      string `json:"item_code" validate:"required"`
	ItemName      string `json:"item_name"`
	Barcode       string `json:"barcode"`
	Quantity      string `json:"qty" validate:"required,numeric"`
	Price         string `json:"price"`
	SumAmount     string `json:"sum_amount"`
	UnitCode      string `json:"unit_code"`
	WarehouseCode string `json:"wh_code"`
	ShelfCode     string `json:"shelf_code"`
	Ratio         string `json:"ratio"`
	StandardValue string `json:"stand_value"`
	DivideValue   string `json:"divide_value"`
	TaxType       string `json:"tax_type"`
}

// WireOrder is the /sendorder body. total_amount and total_value carry the same figure.
type WireOrder struct {
	CustomerCode   string          `json:"cust_code" validate:"required"`
	EmployeeCode   string          `json:"emp_code"`
	DocDate        string          `json:"doc_date"`
	DocTime        string          `json:"doc_time"`
	DocNumber      string          `json:"doc_no" validate:"required"`
	Items          []WireOrderLine `json:"items" validate:"required,min=1,dive"`
	TotalAmount    string          `json:"total_amount" validate:"required,numeric"`
	TotalValue     string          `json:"total_value"`
	TotalExceptVat string          `json:"total_except_vat"`
	TotalAfterVat  string          `json:"total_after_vat"`
	Telephone      string          `json:"telephone"`
	Remark         string          `json:"remark"`
	SendType       string          `json:"send_type"`
	Address        string          `json:"address"`
	AddressName    string          `json:"address_name"`
}

// Wire renders the document in the order service's field names.
func (d OrderDocument) Wire() WireOrder {
	items := make([]WireOrderLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		items = append(items, WireOrderLine{
			ItemCode:      line.ItemCode,
			ItemName:      line.ItemName,
			Barcode:       line.Barcode,
			Quantity:      strconv.Itoa(line.Quantity),
			Price:         line.UnitPrice.String(),
			SumAmount:     line.LineTotal.String(),
			UnitCode:      line.UnitCode,
			WarehouseCode: line.WarehouseCode,
			ShelfCode:     line.ShelfCode,
			Ratio:         line.Ratio,
			StandardValue: line.StandardValue,
			DivideValue:   line.DivideValue,
			TaxType:       line.TaxType.Wire(),
		})
	}
	return WireOrder{
		CustomerCode:   d.CustomerCode,
		EmployeeCode:   d.EmployeeCode,
		DocDate:        d.DocDate,
		DocTime:        d.DocTime,
		DocNumber:      d.DocNumber,
		Items:          items,
		TotalAmount:    d.TotalAmount.String(),
		TotalValue:     d.TotalAmount.String(),
		TotalExceptVat: d.TotalTaxExempt.String(),
		TotalAfterVat:  d.TotalTaxed.String(),
		Telephone:      d.Telephone,
		Remark:         d.Remark,
		SendType:       d.DeliveryMethod.String(),
		Address:        d.DeliveryAddress,
		AddressName:    d.DeliveryAddressName,
	}
}
