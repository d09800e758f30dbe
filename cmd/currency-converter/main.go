package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dalfonso89/currency-converter/internal/cache"
	"github.com/dalfonso89/currency-converter/internal/cli"
	"github.com/dalfonso89/currency-converter/internal/config"
	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/platform"
	"github.com/dalfonso89/currency-converter/internal/service"
)

func main() {
	var (
		interactive bool
		listCode    string
	)
	flag.BoolVar(&interactive, "i", false, "Start in interactive mode")
	flag.BoolVar(&interactive, "interactive", false, "Start in interactive mode")
	flag.StringVar(&listCode, "l", "", "List all conversion rates for the given currency code")
	flag.StringVar(&listCode, "list", "", "List all conversion rates for the given currency code")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n  %[1]s FROM TO AMOUNT\n  %[1]s -l CODE\n  %[1]s -i\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	printer := cli.NewPrinter(os.Stdout, os.Stderr, cli.IsTerminal(os.Stderr))
	if err := run(interactive, listCode, flag.Args(), printer); err != nil {
		printer.PrintError(err)
		os.Exit(1)
	}
}

func run(interactive bool, listCode string, args []string, printer *cli.Printer) error {
	var request cli.Request
	if !interactive && listCode == "" {
		parsed, err := cli.ParseArgs(args)
		if err != nil {
			flag.Usage()
			return err
		}
		request = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := logger.NewWithOutput(cfg.LogLevel, "text", os.Stderr)

	apiKey, err := cfg.RequireAPIKey()
	if err != nil {
		return err
	}

	ctx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	// without a cache every run goes to the API
	var store service.CacheStore
	cacheStore, err := cache.Open(ctx, cfg.CachePath())
	if err != nil {
		log.WithError(err).Warn("Cache unavailable, continuing with data from API")
	} else {
		defer cacheStore.Close()
		store = cacheStore
	}

	client := service.NewExchangeRateAPIClient(cfg, log)
	app := cli.NewApp(
		service.NewRatesService(store, client, apiKey, log, nil),
		printer,
		cli.NewPrompter(os.Stdin, os.Stdout, cli.IsTerminal(os.Stdin)),
	)

	switch {
	case interactive:
		return app.Interactive(ctx)
	case listCode != "":
		return app.List(ctx, listCode)
	default:
		return app.Convert(ctx, request)
	}
}
