// README: Common money value object used across modules.
package types

import (
	"fmt"
	"math"
)

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MoneyFromFloat converts a decimal amount to whole cents, rounding half up.
func MoneyFromFloat(amount float64, currency string) Money {
	return Money{Amount: int64(math.Floor(amount*100 + 0.5)), Currency: currency}
}

func (m Money) Float() float64 {
	return float64(m.Amount) / 100
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Float(), m.Currency)
}
