package checkout

import (
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	"github.com/shopspring/decimal"
)

// TaxBucket totals the lines sharing one tax type.
type TaxBucket struct {
	TaxType   enums.TaxType
	Total     decimal.Decimal
	LineCount int
}

// GroupLinesByTax partitions lines by tax type, preserving order within each group.
func GroupLinesByTax(lines []OrderLine) map[enums.TaxType][]OrderLine {
	grouped := make(map[enums.TaxType][]OrderLine, 2)
	for _, line := range lines {
		grouped[line.TaxType] = append(grouped[line.TaxType], line)
	}
	return grouped
}

// ComputeTaxBuckets returns the taxed and exempt buckets. Both are always present.
func ComputeTaxBuckets(lines []OrderLine) map[enums.TaxType]TaxBucket {
	results := map[enums.TaxType]TaxBucket{
		enums.TaxTypeTaxed:  {TaxType: enums.TaxTypeTaxed, Total: decimal.Zero},
		enums.TaxTypeExempt: {TaxType: enums.TaxTypeExempt, Total: decimal.Zero},
	}
	for taxType, group := range GroupLinesByTax(lines) {
		bucket := results[taxType]
		bucket.TaxType = taxType
		for _, line := range group {
			bucket.Total = bucket.Total.Add(line.LineTotal)
			bucket.LineCount++
		}
		results[taxType] = bucket
	}
	return results
}
