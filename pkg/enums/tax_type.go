package enums

import (
	"fmt"
	"strings"
)

// TaxType buckets order lines into taxed and tax-exempt subtotals.
type TaxType string

const (
	TaxTypeTaxed  TaxType = "taxed"
	TaxTypeExempt TaxType = "exempt"
)

// Wire values used by the order backend's tax_type field.
const (
	taxTypeWireTaxed  = "0"
	taxTypeWireExempt = "1"
)

var validTaxTypes = []TaxType{
	TaxTypeTaxed,
	TaxTypeExempt,
}

// String implements fmt.Stringer.
func (t TaxType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TaxType.
func (t TaxType) IsValid() bool {
	for _, candidate := range validTaxTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Wire returns the backend representation ("0" taxed, "1" exempt).
func (t TaxType) Wire() string {
	if t == TaxTypeExempt {
		return taxTypeWireExempt
	}
	return taxTypeWireTaxed
}

// ParseTaxType converts raw input into a TaxType. It accepts both the
// canonical names and the backend's wire digits.
func ParseTaxType(value string) (TaxType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(TaxTypeTaxed), taxTypeWireTaxed:
		return TaxTypeTaxed, nil
	case string(TaxTypeExempt), taxTypeWireExempt:
		return TaxTypeExempt, nil
	}
	return "", fmt.Errorf("invalid tax type %q", value)
}
