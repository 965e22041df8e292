package notification

import (
	"regexp"
	"strings"
	"time"

	"cardadmin/service/expiry"

	"github.com/shopspring/decimal"
)

// Source tells where an extracted parameter came from. Anything other than
// SourceStructured was recovered from prose and may be wrong.
type Source string

const (
	SourceStructured Source = "structured"
	SourceParsed     Source = "parsed"
	SourceFallback   Source = "fallback"
)

func (s Source) Lossy() bool {
	return s != SourceStructured
}

var FallbackAmount = decimal.NewFromInt(1000)

var (
	amountPattern = regexp.MustCompile(`на сумму\s+(\d[\d \x{00A0}\x{202F}]*(?:[.,]\d+)?)\s*,?\s*руб\.`)
	expiryPattern = regexp.MustCompile(`Срок действия:\s*(\d{2}/\d{2})`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	digitSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".")
)

// ExtractAmount resolves the top-up amount: the structured field when positive,
// otherwise "на сумму 1 234,50 руб." parsed out of ReasonText, otherwise
// FallbackAmount.
func (n Notification) ExtractAmount() (decimal.Decimal, Source) {
	if n.Amount.Valid && n.Amount.Decimal.IsPositive() {
		return n.Amount.Decimal, SourceStructured
	}

	if m := amountPattern.FindStringSubmatch(n.ReasonText); m != nil {
		if d, err := decimal.NewFromString(digitSeparators.Replace(m[1])); err == nil && d.IsPositive() {
			return d, SourceParsed
		}
	}

	return FallbackAmount, SourceFallback
}

// ExtractExpiry resolves the MM/YY expiry of the card to issue.
func (n Notification) ExtractExpiry(now time.Time) (string, Source) {
	if expiry.IsWellFormed(n.NewExpiryDate) {
		return n.NewExpiryDate, SourceStructured
	}

	if m := expiryPattern.FindStringSubmatch(n.ReasonText); m != nil && expiry.IsWellFormed(m[1]) {
		return m[1], SourceParsed
	}

	return expiry.Default(now), SourceFallback
}

// ExtractEmail resolves the card owner's e-mail. There is no fallback: a card
// must never be issued to a guessed owner.
func (n Notification) ExtractEmail() (string, Source, bool) {
	if email := strings.TrimSpace(n.UserEmail); email != "" {
		return email, SourceStructured, true
	}

	if m := emailPattern.FindString(n.ReasonText); m != "" {
		return m, SourceParsed, true
	}

	return "", "", false
}
