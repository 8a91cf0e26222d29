package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CardBrand is the network detected from a card number prefix.
type CardBrand string

const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandAmex       CardBrand = "amex"
	BrandDiscover   CardBrand = "discover"
	BrandUnknown    CardBrand = "unknown"
)

const (
	MsgCardHolder  = "Please enter the cardholder name"
	MsgCardNumber  = "Please enter a valid card number"
	MsgCardExpiry  = "Please enter a valid expiry date (MM/YY)"
	MsgCardExpired = "Card has expired"
	MsgAmount      = "Please enter a valid amount"
)

// Card holds card fields as typed by the learner.
type Card struct {
	Holder string `json:"holder" validate:"notblank"`
	Number string `json:"number" validate:"cardnumber"`
	Expiry string `json:"expiry" validate:"mmyy,notexpired"`
	CVV    string `json:"cvv"`
}

var cardMessages = Messages{
	"holder":            MsgCardHolder,
	"number":            MsgCardNumber,
	"expiry":            MsgCardExpiry,
	"expiry:notexpired": MsgCardExpired,
	"cvv":               "CVV must be {param} digits",
}

var amountMessages = Messages{"amount": MsgAmount}

// CardDigits strips spaces and dashes. ok is false if anything else remains.
func CardDigits(number string) (string, bool) {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return "", false
		}
	}
	return b.String(), b.Len() > 0
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Luhn reports whether digits pass the mod-10 checksum.
func Luhn(digits string) bool {
	if len(digits) == 0 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// DetectBrand identifies the card network from its prefix.
func DetectBrand(digits string) CardBrand {
	prefix := func(n int) int {
		if len(digits) < n {
			return -1
		}
		v, _ := strconv.Atoi(digits[:n])
		return v
	}
	switch {
	case strings.HasPrefix(digits, "4"):
		return BrandVisa
	case prefix(2) == 34 || prefix(2) == 37:
		return BrandAmex
	case prefix(2) >= 51 && prefix(2) <= 55, prefix(4) >= 2221 && prefix(4) <= 2720:
		return BrandMastercard
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return BrandDiscover
	default:
		return BrandUnknown
	}
}

// CVVLength is 4 for 15-digit Amex cards and 3 otherwise.
func CVVLength(digits string) int {
	if len(digits) == 15 && DetectBrand(digits) == BrandAmex {
		return 4
	}
	return 3
}

// ParseExpiry reads an MM/YY expiry.
func ParseExpiry(s string) (month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("expiry %q: want MM/YY", s)
	}
	month, err = strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("expiry %q: bad month", s)
	}
	yy, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("expiry %q: bad year", s)
	}
	return month, 2000 + yy, nil
}

// Expired reports whether the card stopped being valid before now's month.
func Expired(month, year int, now time.Time) bool {
	if year != now.Year() {
		return year < now.Year()
	}
	return month < int(now.Month())
}

// CardDetails validates card fields against now.
func CardDetails(card Card, now time.Time) error {
	var c Collector
	c.Struct(WithNow(context.Background(), now), card, cardMessages)
	return c.Err()
}

// Amount checks a payment amount is positive.
func Amount(amount float64) error {
	var c Collector
	c.Var(context.Background(), "amount", amount, "gt=0", amountMessages)
	return c.Err()
}

// MaskedCard is the card metadata kept after validation; the number and CVV are dropped.
type MaskedCard struct {
	Brand    CardBrand `json:"brand"`
	LastFour string    `json:"lastFour"`
	Expiry   string    `json:"expiry"`
	Holder   string    `json:"holder"`
}

// Mask keeps only what can be shown back to the learner.
func Mask(card Card) MaskedCard {
	digits, _ := CardDigits(card.Number)
	last := digits
	if len(last) > 4 {
		last = last[len(last)-4:]
	}
	return MaskedCard{
		Brand:    DetectBrand(digits),
		LastFour: last,
		Expiry:   strings.TrimSpace(card.Expiry),
		Holder:   strings.TrimSpace(card.Holder),
	}
}
