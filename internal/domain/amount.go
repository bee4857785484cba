package domain

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern accepts digits with at most one decimal point. Empty and
// partial inputs ("", ".", "1.") match and evaluate to their numeric prefix.
var amountPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// IsValidAmount reports whether input is a well formed decimal amount string.
// Callers use it to tell "zero because empty" from "zero because invalid"
// before acting on ParseAmount's result.
func IsValidAmount(input string) bool {
	return amountPattern.MatchString(strings.TrimSpace(input))
}

// ParseAmount converts a human decimal string into a fixed-point integer with
// the given number of decimals. Extra fractional digits are truncated, missing
// ones are zero padded. Malformed input yields zero.
func ParseAmount(input string, decimals int) *big.Int {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || !amountPattern.MatchString(trimmed) {
		return new(big.Int)
	}
	if decimals < 0 {
		decimals = 0
	}

	integerPart, fractionalPart, _ := strings.Cut(trimmed, ".")
	if integerPart == "" {
		integerPart = "0"
	}
	if len(fractionalPart) > decimals {
		fractionalPart = fractionalPart[:decimals]
	} else {
		fractionalPart += strings.Repeat("0", decimals-len(fractionalPart))
	}

	value, ok := new(big.Int).SetString(integerPart+fractionalPart, 10)
	if !ok {
		return new(big.Int)
	}
	return value
}

// FormatAmount renders a fixed-point integer with decimals precision, keeping
// at most displayDecimals fractional digits (truncated). Exact zero is "0".
func FormatAmount(value *big.Int, decimals, displayDecimals int) string {
	if value == nil || value.Sign() == 0 {
		return "0"
	}
	if decimals < 0 {
		decimals = 0
	}
	if displayDecimals < 0 {
		displayDecimals = 0
	}

	sign := ""
	abs := new(big.Int).Set(value)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	divisor := pow10(decimals)
	integerPart, fractional := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	fractionalStr := fractional.String()
	if len(fractionalStr) < decimals {
		fractionalStr = strings.Repeat("0", decimals-len(fractionalStr)) + fractionalStr
	}
	if decimals == 0 {
		fractionalStr = ""
	}
	if len(fractionalStr) > displayDecimals {
		fractionalStr = fractionalStr[:displayDecimals]
	}

	if fractionalStr == "" {
		return sign + integerPart.String()
	}
	return sign + integerPart.String() + "." + fractionalStr
}

// ToDecimal converts a fixed-point integer into a decimal with decimals scale.
func ToDecimal(value *big.Int, decimals int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, int32(-decimals))
}

// UsdValue prices a fixed-point token amount. A nil price counts as zero.
func UsdValue(amount *big.Int, decimals int, priceUsd *decimal.Decimal) decimal.Decimal {
	if priceUsd == nil {
		return decimal.Zero
	}
	return ToDecimal(amount, decimals).Mul(*priceUsd)
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	hundred  = decimal.NewFromInt(100)
)

// FormatNumber renders value with two decimals and a K/M/B suffix.
func FormatNumber(value decimal.Decimal) string {
	switch {
	case value.GreaterThanOrEqual(billion):
		return value.Div(billion).StringFixed(2) + "B"
	case value.GreaterThanOrEqual(million):
		return value.Div(million).StringFixed(2) + "M"
	case value.GreaterThanOrEqual(thousand):
		return value.Div(thousand).StringFixed(2) + "K"
	default:
		return value.StringFixed(2)
	}
}

// FormatUsd renders a dollar amount using FormatNumber.
func FormatUsd(value decimal.Decimal) string {
	return "$" + FormatNumber(value)
}

// FormatPercent renders a ratio (0.05) as a percentage ("5.00%").
func FormatPercent(ratio decimal.Decimal) string {
	return ratio.Mul(hundred).StringFixed(2) + "%"
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
