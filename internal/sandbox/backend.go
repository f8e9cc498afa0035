// Package sandbox is an in-memory order service speaking the same wire
// contract as the production backend. It backs local development and the
// end-to-end tests.
package sandbox

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/cart"
	"github.com/angelmondragon/storefront-cart/pkg/checkout"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownCustomer is returned when an order names a customer the sandbox was not seeded with.
var ErrUnknownCustomer = errors.New("unknown customer")

const (
	OrderStatusPending   = "0"
	OrderStatusApproved  = "1"
	OrderStatusCancelled = "2"

	// TransFlagSaleOrder is the document flag stamped on submitted orders.
	TransFlagSaleOrder = "44"
)

// IDSource assigns server-side line ids.
type IDSource interface {
	GUID() string
}

// Order is a submitted order with its lifecycle status.
type Order struct {
	checkout.WireOrder
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is an issued accounting document.
type Document struct {
	DocNo     string                   `json:"doc_no"`
	DocDate   string                   `json:"doc_date"`
	TransFlag string                   `json:"trans_flag"`
	Amount    decimal.Decimal          `json:"total_amount"`
	Balance   decimal.Decimal          `json:"balance"`
	Items     []checkout.WireOrderLine `json:"items"`
}

// AdvancePayment is a deposit held against future orders.
type AdvancePayment struct {
	DocNo   string          `json:"doc_no"`
	DocDate string          `json:"doc_date"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// Backend holds every customer's carts, orders and documents.
type Backend struct {
	ids IDSource
	now func() time.Time

	mu         sync.Mutex
	customers  map[string]bool
	carts      map[string][]cart.WireRecord
	orders     map[string][]Order
	documents  map[string][]Document
	advances   map[string][]AdvancePayment
	warehouses []Warehouse
	products   []Product
}

// New seeds a backend with customers, the default warehouses and the demo catalog.
func New(ids IDSource, now func() time.Time, customers ...string) *Backend {
	if now == nil {
		now = time.Now
	}
	b := &Backend{
		ids:        ids,
		now:        now,
		customers:  make(map[string]bool),
		carts:      make(map[string][]cart.WireRecord),
		orders:     make(map[string][]Order),
		documents:  make(map[string][]Document),
		advances:   make(map[string][]AdvancePayment),
		warehouses: defaultWarehouses(),
		products:   defaultProducts(),
	}
	for _, code := range customers {
		b.AddCustomer(code)
	}
	return b
}

// AddCustomer registers code as a known customer.
func (b *Backend) AddCustomer(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	b.mu.Lock()
	b.customers[code] = true
	b.mu.Unlock()
}

func (b *Backend) KnownCustomer(code string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.customers[code]
}

// Upsert stores records keyed by (customer, item, unit). An existing row keeps its
// line id and takes the new quantity and price; a new row gets a server line id.
func (b *Backend) Upsert(records []cart.WireRecord) ([]cart.WireRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]cart.WireRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.CustomerCode) == "" || strings.TrimSpace(rec.ItemCode) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cust_code and item_code are required")
		}
		rows := b.carts[rec.CustomerCode]
		idx := -1
		for i := range rows {
			if rows[i].ItemCode == rec.ItemCode && rows[i].UnitCode == rec.UnitCode {
				idx = i
				break
			}
		}
		if idx >= 0 {
			rows[idx].Quantity = rec.Quantity
			rows[idx].Price = rec.Price
			rec = rows[idx]
		} else {
			rec.LineID = b.ids.GUID()
			rows = append(rows, rec)
		}
		b.carts[rec.CustomerCode] = rows
		out = append(out, rec)
	}
	return out, nil
}

// List returns the customer's rows, optionally narrowed to one warehouse.
func (b *Backend) List(customer, warehouse string) []cart.WireRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]cart.WireRecord, 0, len(b.carts[customer]))
	for _, rec := range b.carts[customer] {
		if warehouse != "" && rec.WarehouseCode != warehouse {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (b *Backend) DeleteLine(customer, lineID string) error {
	return b.removeWhere(customer, func(rec cart.WireRecord) bool { return rec.LineID == lineID })
}

func (b *Backend) RemoveProduct(customer, itemCode, unitCode string) error {
	return b.removeWhere(customer, func(rec cart.WireRecord) bool {
		return rec.ItemCode == itemCode && (unitCode == "" || rec.UnitCode == unitCode)
	})
}

func (b *Backend) removeWhere(customer string, match func(cart.WireRecord) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := b.carts[customer]
	kept := rows[:0]
	removed := false
	for _, rec := range rows {
		if match(rec) {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	b.carts[customer] = kept
	return nil
}

func (b *Backend) Clear(customer string) {
	b.mu.Lock()
	delete(b.carts, customer)
	b.mu.Unlock()
}

// CartOrder returns the cart rows repriced from the catalog.
func (b *Backend) CartOrder(customer string) []cart.WireRecord {
	rows := b.List(customer, "")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range rows {
		if p, ok := b.productLocked(rows[i].ItemCode); ok {
			rows[i].Price = p.Price.String()
		}
	}
	return rows
}

// Submit records an order and issues its sale-order document. The customer
// must be known.
func (b *Backend) Submit(order checkout.WireOrder) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.customers[order.CustomerCode] {
		return Order{}, ErrUnknownCustomer
	}
	if strings.TrimSpace(order.DocNumber) == "" || len(order.Items) == 0 {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "doc_no and items are required")
	}
	for _, existing := range b.orders[order.CustomerCode] {
		if existing.DocNumber == order.DocNumber {
			return Order{}, pkgerrors.New(pkgerrors.CodeConflict, "duplicate doc_no")
		}
	}

	amount, err := decimal.NewFromString(order.TotalAmount)
	if err != nil {
		return Order{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "total_amount must be numeric")
	}
	stored := Order{WireOrder: order, Status: OrderStatusPending, CreatedAt: b.now()}
	b.orders[order.CustomerCode] = append(b.orders[order.CustomerCode], stored)
	b.documents[order.CustomerCode] = append(b.documents[order.CustomerCode], Document{
		DocNo:     order.DocNumber,
		DocDate:   order.DocDate,
		TransFlag: TransFlagSaleOrder,
		Amount:    amount,
		Balance:   amount,
		Items:     order.Items,
	})
	return stored, nil
}

// Cancel cancels a pending order and zeroes its document balance.
func (b *Backend) Cancel(customer, docNo string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	orders := b.orders[customer]
	for i := range orders {
		if orders[i].DocNumber != docNo {
			continue
		}
		if orders[i].Status != OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "only pending orders can be cancelled")
		}
		orders[i].Status = OrderStatusCancelled
		docs := b.documents[customer]
		for j := range docs {
			if docs[j].DocNo == docNo {
				docs[j].Balance = decimal.Zero
			}
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

// Orders lists the customer's orders newest first, filtered by status when set.
func (b *Backend) Orders(customer, status string) []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, 0, len(b.orders[customer]))
	for _, o := range b.orders[customer] {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *Backend) Order(customer, docNo string) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders[customer] {
		if o.DocNumber == docNo {
			return o, nil
		}
	}
	return Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (b *Backend) Documents(customer, transFlag string) []Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Document, 0, len(b.documents[customer]))
	for _, d := range b.documents[customer] {
		if transFlag != "" && d.TransFlag != transFlag {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (b *Backend) Document(customer, docNo string) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.documents[customer] {
		if d.DocNo == docNo {
			return d, nil
		}
	}
	return Document{}, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
}

// Balance sums the open balances of the customer's documents less unused advances.
func (b *Backend) Balance(customer string) (outstanding, advance decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	outstanding, advance = decimal.Zero, decimal.Zero
	for _, d := range b.documents[customer] {
		outstanding = outstanding.Add(d.Balance)
	}
	for _, a := range b.advances[customer] {
		advance = advance.Add(a.Balance)
	}
	return outstanding, advance
}

// AddAdvance records a deposit for customer.
func (b *Backend) AddAdvance(customer string, payment AdvancePayment) {
	b.mu.Lock()
	b.advances[customer] = append(b.advances[customer], payment)
	b.mu.Unlock()
}

func (b *Backend) Advances(customer string) []AdvancePayment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AdvancePayment, len(b.advances[customer]))
	copy(out, b.advances[customer])
	return out
}
