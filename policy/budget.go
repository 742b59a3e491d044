package policy

import (
	"github.com/isdmx/safebox/result"
)

// Budget counts evaluated operations against a ceiling. It is owned by a
// single evaluation and is not safe for concurrent use.
type Budget struct {
	used    int64
	ceiling int64
}

// NewBudget creates a budget with the given ceiling
func NewBudget(ceiling int64) *Budget {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Budget{ceiling: ceiling}
}

// Charge accounts for one operation. Once the ceiling is reached every
// further call fails without moving the counter.
func (b *Budget) Charge() error {
	if b.used >= b.ceiling {
		return result.Errorf(result.KindResourceExhausted,
			"operation budget of %d exhausted", b.ceiling)
	}
	b.used++
	return nil
}

// ChargeN accounts for n operations at once. A charge that does not fit
// fails without moving the counter.
func (b *Budget) ChargeN(n int64) error {
	if n <= 0 {
		return nil
	}
	if n > b.ceiling-b.used {
		return result.Errorf(result.KindResourceExhausted,
			"operation budget of %d exhausted", b.ceiling)
	}
	b.used += n
	return nil
}

// Used is the number of successful charges
func (b *Budget) Used() int64 {
	return b.used
}

// Ceiling is the configured maximum
func (b *Budget) Ceiling() int64 {
	return b.ceiling
}

// Remaining is the number of charges still available
func (b *Budget) Remaining() int64 {
	return b.ceiling - b.used
}

// Exhausted reports whether the next charge will fail
func (b *Budget) Exhausted() bool {
	return b.used >= b.ceiling
}
