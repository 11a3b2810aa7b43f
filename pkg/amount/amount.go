// Package amount converts NEAR amounts between yoctoNEAR, the smallest indivisible unit used
// on the wire, and a human-readable decimal representation.
//
// All conversions are digit-string manipulations: values reach ~10^30 and must never pass
// through binary floating point.
package amount

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/arnac-io/nearmultisig/pkg/core"
)

// YoctoDecimals is the number of fractional digits of one NEAR.
const YoctoDecimals = 24

// OneNEAR is 1 NEAR in yoctoNEAR.
const OneNEAR = "1000000000000000000000000"

// ToSmallestUnit converts a decimal NEAR amount into yoctoNEAR.
// The fractional part is padded or truncated to 24 digits, excess digits are dropped without rounding.
// An empty whole part is treated as "0". The result carries no leading zeros except a single "0".
func ToSmallestUnit(near string) string {
	whole, fraction, _ := strings.Cut(near, ".")
	if whole == "" {
		whole = "0"
	}
	if len(fraction) > YoctoDecimals {
		fraction = fraction[:YoctoDecimals]
	}
	fraction += strings.Repeat("0", YoctoDecimals-len(fraction))
	return trimLeadingZeros(whole + fraction)
}

// ToDecimal converts yoctoNEAR into a decimal NEAR amount without trailing fractional zeros.
func ToDecimal(yocto string) string {
	if len(yocto) < YoctoDecimals+1 {
		yocto = strings.Repeat("0", YoctoDecimals+1-len(yocto)) + yocto
	}
	split := len(yocto) - YoctoDecimals
	whole := trimLeadingZeros(yocto[:split])
	fraction := strings.TrimRight(yocto[split:], "0")
	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}

// Format represents yoctoNEAR as NEAR keeping at most precision fractional digits.
// Extra digits are truncated, not rounded.
func Format(yocto string, precision uint32) string {
	whole, fraction, _ := strings.Cut(ToDecimal(yocto), ".")
	if uint32(len(fraction)) > precision {
		fraction = fraction[:precision]
	}
	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}

// Parse validates a user supplied decimal NEAR amount and converts it into yoctoNEAR.
func Parse(near string) (string, error) {
	near = strings.TrimSpace(near)
	if near == "" || near == "." {
		return "", core.NewValidationError("amount", "must not be empty")
	}
	if strings.ContainsAny(near, "+-eE") {
		return "", core.NewValidationError("amount", "must be a plain non-negative decimal number")
	}
	if _, err := decimal.NewFromString(near); err != nil {
		return "", core.NewValidationError("amount", "must be a plain non-negative decimal number")
	}
	return ToSmallestUnit(near), nil
}

// Humanize formats yoctoNEAR like Format and groups the whole part according to the english locale (#,###.##).
func Humanize(yocto string, precision uint32) string {
	formatted := Format(yocto, precision)
	whole, fraction, hasFraction := strings.Cut(formatted, ".")
	// int64 holds up to 18 digits safely, bigger values are returned ungrouped.
	if len(whole) <= 18 {
		x := decimal.RequireFromString(whole)
		whole = message.NewPrinter(language.English).Sprintf("%d", x.IntPart())
	}
	if !hasFraction {
		return whole
	}
	return whole + "." + fraction
}

func trimLeadingZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}
