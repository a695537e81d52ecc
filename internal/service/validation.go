package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/errors"
)

const (
	maxBankTitleLength      = 100
	maxFirstNameLength      = 70
	maxLastNameLength       = 100
	maxDescriptionLength    = 500
	maxIdempotencyKeyLength = 255
	moneyScale              = 2
)

var phonePattern = regexp.MustCompile(`^\+7\d{10}$`)

func checkID(v *errors.ValidationError, field, id string) {
	if strings.TrimSpace(id) == "" {
		v.Add(field, "must be non-empty")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		v.Add(field, "must be a valid UUID")
	}
}

func validateID(field, id string) error {
	v := &errors.ValidationError{}
	checkID(v, field, id)
	return v.OrNil()
}

func checkLength(v *errors.ValidationError, field, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		if minLen == 1 {
			v.Add(field, "must be non-empty")
		} else {
			v.Add(field, fmt.Sprintf("must be at least %d characters", minLen))
		}
		return
	}
	if n > maxLen {
		v.Add(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
}

func checkPhone(v *errors.ValidationError, phone string) {
	if !phonePattern.MatchString(phone) {
		v.Add("phone", "must match +7XXXXXXXXXX")
	}
}

// hasMoneyScale reports whether d carries no more than two decimal places.
// The exponent is checked first so that 1e-999999999 is refused without
// rescaling it.
func hasMoneyScale(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp >= -moneyScale || d.IsZero() {
		return true
	}
	// A coefficient of n digits carries at most n-1 trailing zeros.
	if exp+int64(d.NumDigits())-1 < -moneyScale {
		return false
	}
	return d.Equal(d.Round(moneyScale))
}

// magnitude is the position of the leading digit of a non-zero d: 1 for
// values in [1, 10), 0 for [0.1, 1). It never rescales d.
func magnitude(d decimal.Decimal) int64 {
	return int64(d.NumDigits()) + int64(d.Exponent())
}

// compareMoney compares a non-negative d with a positive bound. Values whose
// magnitudes differ are ordered without arithmetic.
func compareMoney(d, bound decimal.Decimal) int {
	if d.Sign() <= 0 {
		return -1
	}
	dm, bm := magnitude(d), magnitude(bound)
	switch {
	case dm > bm:
		return 1
	case dm < bm:
		return -1
	}
	return d.Cmp(bound)
}

// sameMoney reports whether a and b are the same amount.
func sameMoney(a, b decimal.Decimal) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	return magnitude(a) == magnitude(b) && a.Equal(b)
}

// logAmount renders d for log lines without expanding large exponents.
func logAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < -2*moneyScale || exp > 18 {
		return fmt.Sprintf("%se%d", d.Coefficient().String(), exp)
	}
	return d.String()
}
