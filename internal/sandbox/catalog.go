package sandbox

import (
	"strings"

	"github.com/angelmondragon/storefront-cart/pkg/types"
	"github.com/shopspring/decimal"
)

type Warehouse struct {
	Code string `json:"warehouseCode"`
	Name string `json:"warehouseName"`
}

type Product struct {
	ItemCode string          `json:"item_code"`
	ItemName string          `json:"item_name"`
	UnitCode string          `json:"unit_code"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"qty_available"`
	Premium  bool            `json:"premium"`
	TaxType  string          `json:"tax_type"`
}

// ProductQuery filters the catalog the way /getProductList does.
type ProductQuery struct {
	Search      string
	Category    string
	Offset      int
	Limit       int
	PremiumOnly bool
	InStockOnly bool
}

func defaultWarehouses() []Warehouse {
	return []Warehouse{
		{Code: "MMA01", Name: "Main warehouse"},
		{Code: "MMA02", Name: "North branch"},
	}
}

func defaultProducts() []Product {
	return []Product{
		{ItemCode: "P1001", ItemName: "Jasmine rice 5kg", UnitCode: "ถุง", Category: "rice", Price: decimal.RequireFromString("185"), Stock: 40, Premium: true, TaxType: "1"},
		{ItemCode: "P1002", ItemName: "Fish sauce 700ml", UnitCode: "ขวด", Category: "sauce", Price: decimal.RequireFromString("32.50"), Stock: 120, Premium: true, TaxType: "0"},
		{ItemCode: "P1003", ItemName: "Instant noodles", UnitCode: "ลัง", Category: "noodles", Price: decimal.RequireFromString("199"), Stock: 0, Premium: true, TaxType: "0"},
		{ItemCode: "P1004", ItemName: "Palm sugar 1kg", UnitCode: "ชิ้น", Category: "sugar", Price: decimal.RequireFromString("55.25"), Stock: 15, Premium: true, TaxType: "0"},
		{ItemCode: "P1005", ItemName: "Drinking water 600ml", UnitCode: "แพ็ค", Category: "drinks", Price: decimal.RequireFromString("42"), Stock: 300, Premium: false, TaxType: "0"},
		{ItemCode: "P1006", ItemName: "Fresh eggs 30pcs", UnitCode: "แผง", Category: "eggs", Price: decimal.RequireFromString("129"), Stock: 22, Premium: true, TaxType: "1"},
		{ItemCode: "P1007", ItemName: "Soy sauce 300ml", UnitCode: "ขวด", Category: "sauce", Price: decimal.RequireFromString("24.75"), Stock: 64, Premium: true, TaxType: "0"},
	}
}

func (b *Backend) Warehouses() []Warehouse {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Warehouse, len(b.warehouses))
	copy(out, b.warehouses)
	return out
}

// Products returns one window of matching products and the paging block,
// with Limit acting as the page size.
func (b *Backend) Products(q ProductQuery) ([]Product, types.Pagination) {
	b.mu.Lock()
	defer b.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]Product, 0, len(b.products))
	for _, p := range b.products {
		if q.PremiumOnly && !p.Premium {
			continue
		}
		if q.InStockOnly && p.Stock <= 0 {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.ItemName), search) && !strings.Contains(strings.ToLower(p.ItemCode), search) {
			continue
		}
		matched = append(matched, p)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = len(matched)
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	page := types.Pagination{PerPage: limit, TotalRecord: len(matched)}
	if limit > 0 {
		page.Page = offset / limit
		page.TotalPage = (len(matched) + limit - 1) / limit
	}
	if offset >= len(matched) {
		return []Product{}, page
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]Product, end-offset)
	copy(out, matched[offset:end])
	return out, page
}

func (b *Backend) productLocked(itemCode string) (Product, bool) {
	for _, p := range b.products {
		if p.ItemCode == itemCode {
			return p, true
		}
	}
	return Product{}, false
}
