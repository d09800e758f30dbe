// Package cli implements the currency-converter command: argument and
// prompt parsing, and result printing.
package cli

import (
	"context"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// Resolver is the part of service.RatesService the command needs.
type Resolver interface {
	GetRates(ctx context.Context, baseCode string) (*models.RateSnapshot, error)
	Convert(ctx context.Context, from, to string, amount float64) (models.ConvertResponse, error)
}

// App runs one invocation of the command.
type App struct {
	resolver Resolver
	printer  *Printer
	prompter *Prompter
}

func NewApp(resolver Resolver, printer *Printer, prompter *Prompter) *App {
	return &App{resolver: resolver, printer: printer, prompter: prompter}
}

// Convert converts the amount described by request and prints the result.
func (app *App) Convert(ctx context.Context, request Request) error {
	result, err := app.resolver.Convert(ctx, request.From, request.To, request.Amount)
	if err != nil {
		return err
	}
	app.printer.PrintResult(result)
	return nil
}

// List prints every rate of the base currency named by code.
func (app *App) List(ctx context.Context, code string) error {
	baseCode, err := ParseCode(code)
	if err != nil {
		return err
	}

	snapshot, err := app.resolver.GetRates(ctx, baseCode)
	if err != nil {
		return err
	}
	app.printer.PrintRates(snapshot)
	return nil
}

// Interactive reads the request from the prompter and converts it.
func (app *App) Interactive(ctx context.Context) error {
	request, err := app.prompter.ReadRequest()
	if err != nil {
		return err
	}
	return app.Convert(ctx, request)
}
