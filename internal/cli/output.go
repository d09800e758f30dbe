package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// Printer writes results to out and errors to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer

	highlight *color.Color
	failure   *color.Color
}

// NewPrinter creates a printer. colored turns ANSI colours on regardless of
// what fatih/color detected for the process.
func NewPrinter(out, errOut io.Writer, colored bool) *Printer {
	printer := &Printer{
		out:       out,
		errOut:    errOut,
		highlight: color.New(color.FgGreen, color.Bold),
		failure:   color.New(color.FgRed),
	}
	if colored {
		printer.highlight.EnableColor()
		printer.failure.EnableColor()
	} else {
		printer.highlight.DisableColor()
		printer.failure.DisableColor()
	}
	return printer
}

// PrintResult prints "10.00 USD = 7.90 GBP".
func (printer *Printer) PrintResult(result models.ConvertResponse) {
	converted := printer.highlight.Sprintf("%s %s", formatAmount(result.Converted), result.To)
	fmt.Fprintf(printer.out, "%s %s = %s\n", formatAmount(result.Amount), result.From, converted)
}

// PrintRates lists every rate of snapshot, sorted by currency code.
func (printer *Printer) PrintRates(snapshot *models.RateSnapshot) {
	fmt.Fprintf(printer.out, "Listing conversion rates for %s:\n", snapshot.BaseCode)
	for _, code := range slices.Sorted(maps.Keys(snapshot.ConversionRates)) {
		fmt.Fprintf(printer.out, "%s: %s\n", code, decimal.NewFromFloat(snapshot.ConversionRates[code]).String())
	}
}

// PrintError prints err in red, with a hint for the failures a user can fix.
func (printer *Printer) PrintError(err error) {
	printer.failure.Fprintf(printer.errOut, "Error: %v\n", err)

	errorType, ok := models.TypeOf(err)
	if !ok {
		return
	}
	switch errorType {
	case models.ErrorTypeInvalidAPIKey, models.ErrorTypeMissingAPIKey:
		fmt.Fprintln(printer.errOut, "Get a key at https://www.exchangerate-api.com and export it as EXCHANGERATE_API_KEY.")
	case models.ErrorTypeQuotaExceeded:
		fmt.Fprintln(printer.errOut, "Try again once the quota resets.")
	}
}

func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
