package modelledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Cent is the smallest representable amount.
	Cent = decimal.New(1, -2)
	ten  = decimal.NewFromInt(10)
)

// Round2 rounds to cents half-to-even, the rounding used for every persisted amount.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// IsMultipleOfTen reports whether d is a whole multiple of 10.
func IsMultipleOfTen(d decimal.Decimal) bool {
	return d.Mod(ten).IsZero()
}

type balanceField struct {
	get func(a *Account) decimal.Decimal
	set func(a *Account, d decimal.Decimal)
}

// balanceFields maps each single-field category to its account field.
// COMMISSION spans two fields and is handled by the commission helpers.
var balanceFields = map[PointCategory]balanceField{
	CategoryMaster: {
		get: func(a *Account) decimal.Decimal { return a.MasterBalance },
		set: func(a *Account, d decimal.Decimal) { a.MasterBalance = d },
	},
	CategoryProfit: {
		get: func(a *Account) decimal.Decimal { return a.ProfitBalance },
		set: func(a *Account, d decimal.Decimal) { a.ProfitBalance = d },
	},
}

// Balance returns the balance of a category; COMMISSION is affiliate plus introducer.
func (a *Account) Balance(c PointCategory) (decimal.Decimal, error) {
	if c == CategoryCommission {
		return a.AffiliateBalance.Add(a.IntroducerBalance), nil
	}
	f, ok := balanceFields[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("category %s has no account balance", c)
	}
	return f.get(a), nil
}

// Credit adds amount to a single-field category.
func (a *Account) Credit(c PointCategory, amount decimal.Decimal) error {
	f, ok := balanceFields[c]
	if !ok {
		return fmt.Errorf("category %s cannot be credited directly", c)
	}
	f.set(a, f.get(a).Add(amount))
	return nil
}

// Debit subtracts amount from a single-field category; the caller checks sufficiency.
func (a *Account) Debit(c PointCategory, amount decimal.Decimal) error {
	f, ok := balanceFields[c]
	if !ok {
		return fmt.Errorf("category %s cannot be debited directly", c)
	}
	f.set(a, f.get(a).Sub(amount))
	return nil
}

// DrawCommission takes amount from affiliate first and the remainder from introducer.
// It returns the split actually drawn; the caller checks the combined balance first.
func (a *Account) DrawCommission(amount decimal.Decimal) (affiliate, introducer decimal.Decimal) {
	affiliate = decimal.Min(amount, a.AffiliateBalance)
	introducer = amount.Sub(affiliate)
	a.AffiliateBalance = a.AffiliateBalance.Sub(affiliate)
	a.IntroducerBalance = a.IntroducerBalance.Sub(introducer)
	return affiliate, introducer
}

// RestoreCommission returns a previously drawn split.
func (a *Account) RestoreCommission(affiliate, introducer decimal.Decimal) {
	a.AffiliateBalance = a.AffiliateBalance.Add(affiliate)
	a.IntroducerBalance = a.IntroducerBalance.Add(introducer)
}

// Zero resets every balance.
func (a *Account) Zero() {
	a.MasterBalance = decimal.Zero
	a.ProfitBalance = decimal.Zero
	a.AffiliateBalance = decimal.Zero
	a.IntroducerBalance = decimal.Zero
}
