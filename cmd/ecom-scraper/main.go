package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "ecom-scraper",
		Usage: "scrape listings, product pages and reviews from Indian e-commerce sites",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP job server",
				Flags:  []cli.Flag{envFlag()},
				Action: serveAction,
			},
			{
				Name:  "search",
				Usage: "scrape a search results page into CSV",
				Flags: []cli.Flag{
					envFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "search text or search page URL",
						Required: true,
					},
				},
				Action: searchAction,
			},
			{
				Name:  "bulk",
				Usage: "scrape a list of product URLs into XLSX",
				Flags: []cli.Flag{
					envFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:  "urls",
						Usage: "product URLs separated by commas, spaces or newlines",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "file containing product URLs",
					},
				},
				Action: bulkAction,
			},
			{
				Name:  "reviews",
				Usage: "scrape the reviews of one product into CSV",
				Flags: []cli.Flag{
					envFlag(),
					platformFlag(),
					&cli.StringFlag{
						Name:     "url",
						Usage:    "product page URL",
						Required: true,
					},
				},
				Action: reviewsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to an environment file",
		Value: ".env",
	}
}

func platformFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "platform",
		Aliases:  []string{"p"},
		Usage:    "amazon, flipkart, zepto, blinkit, jiomart, swiggy or bigbasket",
		Required: true,
	}
}
