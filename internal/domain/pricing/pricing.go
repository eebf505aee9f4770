// Package pricing holds the pure price and presentation helpers shared by the
// cart, feed, category and detail components.
package pricing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrInvalidSlug is returned when a slug does not end in a numeric product id.
var ErrInvalidSlug = errors.New("invalid product slug")

var (
	hundred = decimal.NewFromInt(100)

	// Whitespace here also covers \v, Unicode separators and BOM, which RE2's
	// \s leaves out.
	slugStrip      = regexp.MustCompile(`[^\w\s\v\p{Z}\x{feff}-]`)
	slugWhitespace = regexp.MustCompile(`[\s\v\p{Z}\x{feff}]+`)
	slugHyphens    = regexp.MustCompile(`-+`)
)

// CalculateFinalPrice applies a percentage discount to price and rounds the
// result to cents, half away from zero. Non-positive discounts return price
// unchanged.
func CalculateFinalPrice(price, discountPercentage decimal.Decimal) decimal.Decimal {
	if !discountPercentage.IsPositive() {
		return price
	}
	return price.Mul(hundred.Sub(discountPercentage)).Div(hundred).Round(2)
}

// FinalPrice is CalculateFinalPrice for a catalog product.
func FinalPrice(p product.Product) decimal.Decimal {
	return CalculateFinalPrice(p.Price, p.DiscountPercentage)
}

// HasDiscount reports whether the product carries a positive discount.
func HasDiscount(p product.Product) bool {
	return p.DiscountPercentage.IsPositive()
}

// Savings returns how much cheaper final is than price, never negative.
func Savings(price, final decimal.Decimal) decimal.Decimal {
	s := price.Sub(final)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// FormatMoney renders amount as US dollars with thousands grouping and
// exactly two fraction digits, e.g. "$1,234.50".
func FormatMoney(amount decimal.Decimal) string {
	return FormatMoneyIn(language.AmericanEnglish, amount)
}

// FormatMoneyIn is FormatMoney with locale-specific digit grouping.
// The amount is expected to be rounded already.
func FormatMoneyIn(tag language.Tag, amount decimal.Decimal) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("$%v", number.Decimal(amount.InexactFloat64(), number.Scale(2)))
}

// CreateProductSlug builds the URL slug "<normalized-title>-<id>". Titles that
// normalize to nothing degrade to "-<id>".
func CreateProductSlug(p product.Product) string {
	return titleToSlug(p.Title) + "-" + strconv.Itoa(p.ID)
}

func titleToSlug(title string) string {
	s := strings.TrimFunc(strings.ToLower(title), func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	s = slugStrip.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	return slugHyphens.ReplaceAllString(s, "-")
}

// ExtractIDFromSlug returns the last hyphen-separated segment of slug. The
// result is only a valid id for slugs produced by CreateProductSlug; use
// ParseSlugID to validate.
func ExtractIDFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	return parts[len(parts)-1]
}

// ParseSlugID extracts and validates the numeric product id from slug.
func ParseSlugID(slug string) (int, error) {
	raw := ExtractIDFromSlug(slug)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 || raw != strconv.Itoa(id) {
		return 0, errors.Wrapf(ErrInvalidSlug, "slug %q", slug)
	}
	return id, nil
}

// CategoryLabel turns a category tag into a display label:
// "home-decoration" becomes "Home Decoration".
func CategoryLabel(category string) string {
	// Casers carry state and are not shared between goroutines.
	return cases.Title(language.English).String(strings.ReplaceAll(category, "-", " "))
}
