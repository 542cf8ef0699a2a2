// Package billing sells credit packages and reports what an account bought
// and spent.
package billing

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kiranalogo/internal/domain"
)

// Package is a purchasable bundle of credits. Prices are in minor units of
// the currency (cents, sen).
type Package struct {
	Credits  int    `json:"credits"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Label    string `json:"label"`
	Display  string `json:"display_price"`
	Popular  bool   `json:"popular,omitempty"`
}

type priceList map[int]int64

var (
	usdPrices = priceList{50: 500, 200: 1500, 500: 3000}
	idrPrices = priceList{50: 7500000, 200: 22500000, 500: 45000000}
)

// PackageSizes lists the sellable package sizes, smallest first.
var PackageSizes = []int{50, 200, 500}

var variantPattern = regexp.MustCompile(`(?i)(\d+)\s*credits?`)

// Catalog resolves package prices for a buyer country and builds checkout links.
type Catalog struct {
	permalinks map[int]string
}

func NewCatalog(permalinks map[int]string) *Catalog {
	return &Catalog{permalinks: permalinks}
}

// Packages returns every package priced for country. Indonesian buyers pay
// in rupiah, everyone else in US dollars.
func (c *Catalog) Packages(country string) []Package {
	cur, prices, tag := currency.USD, usdPrices, language.English
	if strings.EqualFold(country, "ID") {
		cur, prices, tag = currency.IDR, idrPrices, language.Indonesian
	}
	out := make([]Package, 0, len(PackageSizes))
	for _, credits := range PackageSizes {
		out = append(out, Package{
			Credits:  credits,
			Price:    prices[credits],
			Currency: cur.String(),
			Label:    VariantLabel(credits),
			Display:  FormatPrice(tag, cur.String(), prices[credits]),
			Popular:  credits == 200,
		})
	}
	return out
}

// CheckoutURL builds the hosted checkout link for a package. The account id
// rides along as a URL parameter so the purchase webhook can attribute the sale.
func (c *Catalog) CheckoutURL(credits int, accountID string) (string, error) {
	if !validPackage(credits) {
		return "", fmt.Errorf("package %d: %w", credits, domain.ErrValidation)
	}
	permalink := strings.TrimSpace(c.permalinks[credits])
	if permalink == "" {
		return "", fmt.Errorf("billing: checkout for %d credits is not configured", credits)
	}
	u, err := url.Parse(permalink)
	if err != nil {
		return "", fmt.Errorf("billing: parse permalink: %w", err)
	}
	q := u.Query()
	q.Set("variant", VariantLabel(credits))
	if accountID != "" {
		q.Set("account_id", accountID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VariantLabel is the product variant name for a package, e.g. "50 Credits".
func VariantLabel(credits int) string {
	return strconv.Itoa(credits) + " Credits"
}

// CreditsFromVariant parses a variant name back into a known package size.
func CreditsFromVariant(variant string) (int, bool) {
	m := variantPattern.FindStringSubmatch(variant)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || !validPackage(n) {
		return 0, false
	}
	return n, true
}

func validPackage(credits int) bool {
	for _, size := range PackageSizes {
		if size == credits {
			return true
		}
	}
	return false
}

// minorDigits is the ISO 4217 minor unit exponent of the currencies prices
// are stored in. CLDR rounds IDR to whole rupiah for display, but amounts
// still arrive in sen.
var minorDigits = map[string]int{
	"USD": 2,
	"IDR": 2,
	"EUR": 2,
	"SGD": 2,
	"JPY": 0,
}

// MinorDigits returns the minor unit exponent for an ISO currency code.
// Codes outside the table use the CLDR standard scale.
func MinorDigits(unit currency.Unit) int {
	if n, ok := minorDigits[unit.String()]; ok {
		return n
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// FormatPrice renders a minor-unit amount with the currency symbol and the
// number conventions of tag. Unknown currency codes fall back to the raw code.
func FormatPrice(tag language.Tag, code string, minor int64) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %d", strings.ToUpper(code), minor)
	}
	major := float64(minor) / math.Pow10(MinorDigits(unit))
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol.Kind(currency.Cash)(unit.Amount(major)))
}

// LanguageFor picks the display language for a locale or country hint.
func LanguageFor(locale, country string) language.Tag {
	if strings.HasPrefix(strings.ToLower(locale), "id") || strings.EqualFold(country, "ID") {
		return language.Indonesian
	}
	return language.English
}
