package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// StorageKey is the fixed namespace the cart snapshot is persisted under.
const StorageKey = "cart-storage"

// Item is a cart line: the product snapshot taken at add time, the quantity,
// and the unit price locked in when the product was first added.
type Item struct {
	product.Product
	Quantity   int
	FinalPrice decimal.Decimal
}

// UnitPrice returns the price charged per unit. Items persisted without a
// final price fall back to the catalog price.
func (i Item) UnitPrice() decimal.Decimal {
	if i.FinalPrice.IsZero() {
		return i.Price
	}
	return i.FinalPrice
}

// LineTotal is UnitPrice times Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Savings is the per-unit discount relative to the catalog price.
func (i Item) Savings() decimal.Decimal {
	return pricing.Savings(i.Price, i.UnitPrice())
}

// Totals summarizes the cart for the order summary.
type Totals struct {
	// Subtotal is the pre-discount sum of price × quantity.
	Subtotal decimal.Decimal
	// Total is the sum of final price × quantity.
	Total decimal.Decimal
	// Savings is Subtotal - Total.
	Savings decimal.Decimal
	// Count is the number of units across all lines.
	Count int
}

// Compute returns the totals for items.
func Compute(items []Item) Totals {
	t := Totals{Subtotal: decimal.Zero, Total: decimal.Zero}
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		t.Subtotal = t.Subtotal.Add(it.Price.Mul(qty))
		t.Total = t.Total.Add(it.LineTotal())
		t.Count += it.Quantity
	}
	t.Savings = t.Subtotal.Sub(t.Total)
	return t
}

func encodeItem(e *jx.Encoder, it Item) {
	e.ObjStart()
	it.EncodeFields(e)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("finalPrice")
	product.EncodeDecimal(e, it.FinalPrice)
	e.ObjEnd()
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "quantity":
			q, err := d.Int()
			it.Quantity = q
			return err
		case "finalPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := product.DecodeDecimal(d)
			it.FinalPrice = v
			return err
		}
		ok, err := it.Product.DecodeField(d, key)
		if err != nil || ok {
			return err
		}
		return d.Skip()
	})
	if err != nil {
		return Item{}, errors.Wrap(err, "decode cart item")
	}
	return it, nil
}
