package service

import (
	"github.com/shopspring/decimal"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// Convert multiplies amount by the snapshot's rate for toCode and rounds to two
// places, half away from zero. The product is taken in decimal, so 1.005
// rounds to 1.01.
func Convert(amount float64, toCode string, snapshot *models.RateSnapshot) (float64, error) {
	rate, ok := snapshot.ConversionRates[toCode]
	if !ok {
		return 0, models.NewCurrencyNotFoundError(snapshot.BaseCode, toCode)
	}

	converted, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		Float64()
	return converted, nil
}
