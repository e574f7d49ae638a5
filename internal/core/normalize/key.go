package normalize

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	ptime "alertrecon/internal/platform/time"
)

// maxKeyTokens caps the reference tokens folded into a composite key
const maxKeyTokens = 3

// Key builds the deterministic grouping key. amount, currency and instant
// are all required; nil is returned when any is missing
func Key(
	amount *decimal.Decimal,
	currency string,
	instant *time.Time,
	ref *canon.ReferenceBundle,
	account string,
) *canon.CompositeKey {
	if amount == nil || currency == "" || instant == nil {
		return nil
	}

	var top []string
	if ref != nil {
		n := len(ref.Tokens)
		if n > maxKeyTokens {
			n = maxKeyTokens
		}
		top = append(top, ref.Tokens[:n]...)
		sort.Strings(top)
	}

	return &canon.CompositeKey{
		AmountString: amount.StringFixed(2),
		Currency:     currency,
		DateBucket:   ptime.HourUTC(*instant).Format("2006-01-02-15"),
		TopTokens:    top,
		AccountLast4: canon.AccountLast4(account),
	}
}
