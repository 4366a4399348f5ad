package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"air-server/internal/client"
)

// Demo:
// - Send a small pricing request to a running server, as a spreadsheet would
// - Print the priced rows
// - Send a malformed request to show how errors come back
// - Print the server's usage figures, which now include both calls
func main() {
	baseURL := flag.String("url", client.DefaultBaseURL, "Base URL of a running air server")
	user := flag.String("user", "demo", "UserName header to send")
	machine := flag.String("machine", hostname(), "Machine header to send")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := client.NewClient(*baseURL, logger)
	c.UserName = *user
	c.Machine = *machine

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Two scenarios laid out in columns; the server detects the orientation.
	rows, err := c.Price(ctx, client.PriceParams{
		Parameters: [][]any{{"strike"}, {"maturity"}, {"notional"}},
		Values:     [][]any{{100, 110}, {"1Y", "2Y"}, {1e6, 2e6}},
		Option1:    "Fast",
		Culture:    "en-GB",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pricing failed:", err)
		os.Exit(1)
	}
	fmt.Printf("%-4s %-44s %-10s %-12s\n", "row", "id", "price", "date")
	for i, row := range rows {
		cells := make([]any, 3)
		for j := range cells {
			if j < len(row) {
				cells[j] = row[j].Value
			}
		}
		fmt.Printf("%-4d %-44v %-10.6v %-12v\n", i+1, cells[0], cells[1], cells[2])
	}

	_, err = c.Price(ctx, client.PriceParams{Values: [][]any{{1, 2}}, Parameters: [][]any{{""}}})
	var pe *client.PricingError
	if errors.As(err, &pe) {
		fmt.Printf("\nmalformed request came back as: %s\n", pe.Message)
	}

	k, err := c.Stats(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats failed:", err)
		os.Exit(1)
	}
	fmt.Printf("\ncalls=%d users=%d error_rate=%.2f%% most_active=%s\n",
		k.TotalCalls, k.UniqueUsers, k.ErrorRate, k.MostActiveUser)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "demo"
	}
	return h
}
