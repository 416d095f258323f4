package entities

import "fmt"

// Currency identifies one of the two independent wallet balances
type Currency string

const (
	CurrencyReal Currency = "real"
	CurrencyPlay Currency = "play"
)

// AllCurrencies lists every supported currency
var AllCurrencies = []Currency{CurrencyReal, CurrencyPlay}

// ParseCurrency converts a stored or user supplied value into a Currency
func ParseCurrency(value string) (Currency, error) {
	c := Currency(value)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown currency %q", value)
	}
	return c, nil
}

// IsValid returns true if the currency is a known value
func (c Currency) IsValid() bool {
	return c == CurrencyReal || c == CurrencyPlay
}

// String returns the string representation of the currency
func (c Currency) String() string {
	return string(c)
}
