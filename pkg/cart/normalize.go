package cart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/shopspring/decimal"
)

const defaultFactor = "1"

// IDSource supplies client-side placeholder line ids.
type IDSource interface {
	GUID() string
}

// Normalizer converts raw rows into Lines and Lines into wire records. It never fails:
// malformed or missing fields fall back to defaults.
type Normalizer struct {
	defaults config.DefaultsConfig
	ids      IDSource
	now      func() time.Time
}

func NewNormalizer(defaults config.DefaultsConfig, ids IDSource, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{defaults: defaults, ids: ids, now: now}
}

// FromRaw maps a raw record onto a Line. defaultQty is used when no quantity alias
// carries a number; new-add paths pass 1.
func (n *Normalizer) FromRaw(raw RawRecord, defaultQty int) Line {
	line := Line{
		LineID:        raw.first("guid_code", "id"),
		ItemCode:      raw.first("item_code", "id", "code"),
		ItemName:      raw.first("item_name", "name"),
		UnitCode:      raw.first("unit_code", "unit"),
		Barcode:       raw.first("barcode"),
		WarehouseCode: raw.first("wh_code", "warehouse_code"),
		ShelfCode:     raw.first("shelf_code"),
		Ratio:         raw.first("ratio"),
		StandardValue: raw.first("stand_value"),
		DivideValue:   raw.first("divide_value"),
		TaxType:       taxTypeOf(raw.first("tax_type")),
		Image:         raw.first("image", "product_image"),
	}
	if line.LineID == "" {
		line.LineID = n.ids.GUID()
	}

	line.Quantity = defaultQty
	if qty, ok := raw.quantity(); ok {
		line.Quantity = qty
	}
	line.Quantity = clampQuantity(line.Quantity)
	line.UnitPrice = toPrice(raw["price"])

	line.CreatedAt = n.now()
	if ts := raw.first("create_datetime"); ts != "" {
		if parsed, err := time.ParseInLocation(WireTimeLayout, ts, time.Local); err == nil {
			line.CreatedAt = parsed
		}
	}

	return n.applyDefaults(line)
}

// FromRawList maps every record with FromRaw.
func (n *Normalizer) FromRawList(records []RawRecord, defaultQty int) []Line {
	lines := make([]Line, 0, len(records))
	for _, raw := range records {
		lines = append(lines, n.FromRaw(raw, defaultQty))
	}
	return lines
}

// ToWire renders a line for the order service, stamped with the acting identity.
func (n *Normalizer) ToWire(line Line, id session.Identity) WireRecord {
	line = n.applyDefaults(line)
	if line.LineID == "" {
		line.LineID = n.ids.GUID()
	}
	created := line.CreatedAt
	if created.IsZero() {
		created = n.now()
	}
	return WireRecord{
		CreatorCode:    id.CreatorCode(),
		CustomerCode:   id.CustomerCode,
		EmployeeCode:   id.EmployeeCode,
		LineID:         line.LineID,
		ItemCode:       line.ItemCode,
		ItemName:       line.ItemName,
		UnitCode:       line.UnitCode,
		Barcode:        line.Barcode,
		Quantity:       strconv.Itoa(clampQuantity(line.Quantity)),
		Price:          line.UnitPrice.String(),
		WarehouseCode:  line.WarehouseCode,
		ShelfCode:      line.ShelfCode,
		Ratio:          line.Ratio,
		StandardValue:  line.StandardValue,
		DivideValue:    line.DivideValue,
		TaxType:        line.TaxType.Wire(),
		CreateDatetime: created.Format(WireTimeLayout),
	}
}

// Key returns the (item, unit) identity a raw record resolves to after defaults.
func (n *Normalizer) Key(raw RawRecord) (itemCode, unitCode string) {
	unitCode = raw.first("unit_code", "unit")
	if unitCode == "" {
		unitCode = n.defaults.UnitCode
	}
	return raw.first("item_code", "id", "code"), unitCode
}

// LineRef is what an update request resolves to: a line id, a product key and
// an optional new quantity.
type LineRef struct {
	LineID      string
	ItemCode    string
	UnitCode    string
	// HasUnit is false when UnitCode came from the defaults.
	HasUnit     bool
	Quantity    int
	HasQuantity bool
}

// Ref resolves an update request with the same aliases FromRaw uses.
func (n *Normalizer) Ref(raw RawRecord) LineRef {
	ref := LineRef{
		LineID:  raw.first("guid_code", "id"),
		HasUnit: raw.first("unit_code", "unit") != "",
	}
	ref.ItemCode, ref.UnitCode = n.Key(raw)
	if qty, ok := raw.quantity(); ok {
		ref.Quantity, ref.HasQuantity = clampQuantity(qty), true
	}
	return ref
}

// match returns the index of the line ref points at: by line id first, then by
// (item, unit), then by item alone when the request named no unit.
func (r LineRef) match(lines []Line) int {
	if r.LineID != "" {
		for i, line := range lines {
			if line.LineID == r.LineID {
				return i
			}
		}
	}
	if r.ItemCode == "" {
		return -1
	}
	for i, line := range lines {
		if line.sameProduct(r.ItemCode, r.UnitCode) {
			return i
		}
	}
	if !r.HasUnit {
		for i, line := range lines {
			if line.ItemCode == r.ItemCode {
				return i
			}
		}
	}
	return -1
}

func (n *Normalizer) applyDefaults(line Line) Line {
	if line.UnitCode == "" {
		line.UnitCode = n.defaults.UnitCode
	}
	if line.WarehouseCode == "" {
		line.WarehouseCode = n.defaults.WarehouseCode
	}
	if line.ShelfCode == "" {
		line.ShelfCode = n.defaults.ShelfCode
	}
	if line.Ratio == "" {
		line.Ratio = defaultFactor
	}
	if line.StandardValue == "" {
		line.StandardValue = defaultFactor
	}
	if line.DivideValue == "" {
		line.DivideValue = defaultFactor
	}
	if !line.TaxType.IsValid() {
		line.TaxType = enums.TaxTypeTaxed
	}
	if line.UnitPrice.IsNegative() {
		line.UnitPrice = decimal.Zero
	}
	return line
}

func (r RawRecord) first(keys ...string) string {
	for _, key := range keys {
		if s := stringOf(r[key]); s != "" {
			return s
		}
	}
	return ""
}

func (r RawRecord) quantity() (int, bool) {
	for _, key := range []string{"qty", "quantity"} {
		if qty, ok := toInt(r[key]); ok {
			return qty, true
		}
	}
	return 0, false
}

func stringOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	s := stringOf(v)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return int(d.IntPart()), true
}

func toPrice(v any) decimal.Decimal {
	var d decimal.Decimal
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = val
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	default:
		parsed, err := decimal.NewFromString(stringOf(v))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func taxTypeOf(value string) enums.TaxType {
	if parsed, err := enums.ParseTaxType(value); err == nil {
		return parsed
	}
	return enums.TaxTypeTaxed
}

func clampQuantity(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}
