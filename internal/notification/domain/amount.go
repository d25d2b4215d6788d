package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// FormatAmount renders minor units as a display amount, e.g. 10000 usd -> "100.00 USD".
func FormatAmount(minor int64, currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	exp := int32(-2)
	places := int32(2)
	if _, ok := zeroDecimalCurrencies[currency]; ok {
		exp = 0
		places = 0
	}
	value := decimal.New(minor, exp).StringFixed(places)
	if currency == "" {
		return value
	}
	return value + " " + strings.ToUpper(currency)
}
