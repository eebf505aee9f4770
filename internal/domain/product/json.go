package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode writes p as a JSON object using the catalog wire field names.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	p.EncodeFields(e)
	e.ObjEnd()
}

// EncodeFields writes the product fields without the surrounding braces so
// that wrapping records (cart items) can flatten them into their own object.
func (p Product) EncodeFields(e *jx.Encoder) {
	e.FieldStart("id")
	e.Int(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	EncodeDecimal(e, p.Price)
	e.FieldStart("discountPercentage")
	EncodeDecimal(e, p.DiscountPercentage)
	e.FieldStart("rating")
	e.Float64(p.Rating)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("brand")
	e.Str(p.Brand)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("thumbnail")
	e.Str(p.Thumbnail)
	e.FieldStart("images")
	encodeStrings(e, p.Images)

	if p.Weight != 0 {
		e.FieldStart("weight")
		e.Float64(p.Weight)
	}
	if p.Dimensions != nil {
		e.FieldStart("dimensions")
		e.ObjStart()
		e.FieldStart("width")
		e.Float64(p.Dimensions.Width)
		e.FieldStart("height")
		e.Float64(p.Dimensions.Height)
		e.FieldStart("depth")
		e.Float64(p.Dimensions.Depth)
		e.ObjEnd()
	}
	optStr(e, "warrantyInformation", p.WarrantyInformation)
	optStr(e, "shippingInformation", p.ShippingInformation)
	optStr(e, "availabilityStatus", p.AvailabilityStatus)
	optStr(e, "returnPolicy", p.ReturnPolicy)
	if p.MinimumOrderQuantity != 0 {
		e.FieldStart("minimumOrderQuantity")
		e.Int(p.MinimumOrderQuantity)
	}
	if len(p.Tags) > 0 {
		e.FieldStart("tags")
		encodeStrings(e, p.Tags)
	}
	optStr(e, "sku", p.SKU)
	if len(p.Reviews) > 0 {
		e.FieldStart("reviews")
		e.ArrStart()
		for _, r := range p.Reviews {
			e.ObjStart()
			e.FieldStart("rating")
			e.Int(r.Rating)
			e.FieldStart("comment")
			e.Str(r.Comment)
			e.FieldStart("date")
			e.Str(r.Date)
			e.FieldStart("reviewerName")
			e.Str(r.ReviewerName)
			e.FieldStart("reviewerEmail")
			e.Str(r.ReviewerEmail)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
}

// Decode reads a product object from d. Unknown fields are skipped.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		ok, err := p.DecodeField(d, key)
		if err != nil {
			return errors.Wrapf(err, "decode field %q", key)
		}
		if !ok {
			return d.Skip()
		}
		return nil
	})
}

// DecodeField decodes the value for key into p. It reports false without
// consuming input when key is not a product field.
func (p *Product) DecodeField(d *jx.Decoder, key string) (bool, error) {
	if d.Next() == jx.Null {
		switch key {
		case "id", "title", "description", "price", "discountPercentage", "rating",
			"stock", "brand", "category", "thumbnail", "images", "weight", "dimensions",
			"warrantyInformation", "shippingInformation", "availabilityStatus",
			"returnPolicy", "minimumOrderQuantity", "tags", "sku", "reviews":
			return true, d.Null()
		}
		return false, nil
	}

	var err error
	switch key {
	case "id":
		p.ID, err = d.Int()
	case "title":
		p.Title, err = d.Str()
	case "description":
		p.Description, err = d.Str()
	case "price":
		p.Price, err = DecodeDecimal(d)
	case "discountPercentage":
		p.DiscountPercentage, err = DecodeDecimal(d)
	case "rating":
		p.Rating, err = d.Float64()
	case "stock":
		p.Stock, err = d.Int()
	case "brand":
		p.Brand, err = d.Str()
	case "category":
		p.Category, err = d.Str()
	case "thumbnail":
		p.Thumbnail, err = d.Str()
	case "images":
		p.Images, err = decodeStrings(d)
	case "weight":
		p.Weight, err = d.Float64()
	case "dimensions":
		var dim Dimensions
		err = d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "width":
				dim.Width, err = d.Float64()
			case "height":
				dim.Height, err = d.Float64()
			case "depth":
				dim.Depth, err = d.Float64()
			default:
				err = d.Skip()
			}
			return err
		})
		p.Dimensions = &dim
	case "warrantyInformation":
		p.WarrantyInformation, err = d.Str()
	case "shippingInformation":
		p.ShippingInformation, err = d.Str()
	case "availabilityStatus":
		p.AvailabilityStatus, err = d.Str()
	case "returnPolicy":
		p.ReturnPolicy, err = d.Str()
	case "minimumOrderQuantity":
		p.MinimumOrderQuantity, err = d.Int()
	case "tags":
		p.Tags, err = decodeStrings(d)
	case "sku":
		p.SKU, err = d.Str()
	case "reviews":
		err = d.Arr(func(d *jx.Decoder) error {
			r, err := decodeReview(d)
			if err != nil {
				return err
			}
			p.Reviews = append(p.Reviews, r)
			return nil
		})
	default:
		return false, nil
	}
	return true, err
}

// DecodePage reads a listing envelope: {"products":[...],"total":..,"skip":..,"limit":..}.
func DecodePage(d *jx.Decoder) (*Page, error) {
	page := &Page{Products: []Product{}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "products":
			err = d.Arr(func(d *jx.Decoder) error {
				var p Product
				if err := p.Decode(d); err != nil {
					return err
				}
				page.Products = append(page.Products, p)
				return nil
			})
		case "total":
			page.Total, err = d.Int()
		case "skip":
			page.Skip, err = d.Int()
		case "limit":
			page.Limit, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode page")
	}
	return page, nil
}

// EncodeDecimal writes v as a bare JSON number.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

// DecodeDecimal reads a JSON number (or numeric string) without going through float64.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse decimal")
	}
	return v, nil
}

func decodeReview(d *jx.Decoder) (Review, error) {
	var r Review
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rating":
			r.Rating, err = d.Int()
		case "comment":
			r.Comment, err = d.Str()
		case "date":
			r.Date, err = d.Str()
		case "reviewerName":
			r.ReviewerName, err = d.Str()
		case "reviewerEmail":
			r.ReviewerEmail, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func optStr(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.FieldStart(name)
	e.Str(v)
}
