package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"air-server/internal/analysis"
	"air-server/internal/auditlog"
	"air-server/internal/config"
	"air-server/internal/database"
	"air-server/internal/pricing"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "stats":
		err = cmdStats(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "purge":
		err = cmdPurge(os.Args[2:])
	case "price":
		err = cmdPrice(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli stats  [--config air.yaml]")
	fmt.Println("  cli export [--config air.yaml] --out results/calls.csv")
	fmt.Println("  cli import [--config air.yaml] --in results/calls.csv")
	fmt.Println("  cli purge  [--config air.yaml] --yes")
	fmt.Println(`  cli price  --parameters '[["strike","maturity"]]' --values '[[100,"1Y"]]'`)
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - without --config the in-memory store is used, which starts empty")
	fmt.Println("  - price runs the pricing engine locally and records nothing")
}

// openStore loads config and opens the configured audit log.
func openStore(ctx context.Context, cfgPath string) (auditlog.Store, *config.Config, error) {
	cfg, err := config.LoadAndValidate(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stderr)
	store, err := database.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("AIR_CONFIG"), "Path to YAML config")
	_ = fs.Parse(args)

	ctx := context.Background()
	store, cfg, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	recs, err := store.All(ctx, nil)
	if err != nil {
		return err
	}
	k := analysis.ComputeKPIs(recs, time.Now(), loc)

	peak := analysis.NoneLabel
	if k.PeakHour != nil {
		peak = fmt.Sprintf("%d:00", *k.PeakHour)
	}
	fmt.Printf("%-24s %d\n", "Total Calls", k.TotalCalls)
	fmt.Printf("%-24s %d\n", "Unique Users", k.UniqueUsers)
	fmt.Printf("%-24s %d\n", "Calls in Last 24 Hours", k.CallsLast24h)
	fmt.Printf("%-24s %s\n", "Most Active User", k.MostActiveUser)
	fmt.Printf("%-24s %.2f%%\n", "Error Rate", k.ErrorRate)
	fmt.Printf("%-24s %s\n", "Most Used Endpoint", k.MostUsedEndpoint)
	fmt.Printf("%-24s %.2f milliseconds\n", "Average Load Time", k.AvgResponseTime)
	fmt.Printf("%-24s %s\n", "Peak Usage Hour", peak)
	fmt.Printf("%-24s %.2f%%\n", "Successful Call Rate", k.SuccessRate)
	fmt.Printf("%-24s %.2f milliseconds\n", "Longest Response Time", k.MaxResponseTime)
	fmt.Printf("%-24s %.2f milliseconds\n", "p95 Response Time", k.P95ResponseTime)

	methods := make([]string, 0, len(k.MethodCounts))
	for m := range k.MethodCounts {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		fmt.Printf("  %-22s %d\n", m, k.MethodCounts[m])
	}
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("AIR_CONFIG"), "Path to YAML config")
	outPath := fs.String("out", "results/calls.csv", "Output CSV path")
	_ = fs.Parse(args)

	ctx := context.Background()
	store, _, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.All(ctx, nil)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return err
	}
	if err := auditlog.WriteCSVFile(*outPath, recs); err != nil {
		return err
	}
	fmt.Printf("Wrote %d calls to %s\n", len(recs), *outPath)
	return nil
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("AIR_CONFIG"), "Path to YAML config")
	inPath := fs.String("in", "", "CSV file written by export")
	_ = fs.Parse(args)

	if *inPath == "" {
		return fmt.Errorf("--in is required")
	}
	f, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	defer f.Close()
	recs, err := auditlog.ReadCSV(f)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, _, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Ids are reassigned by the store.
	for i := range recs {
		recs[i].ID = 0
	}
	n, err := store.BulkInsert(ctx, recs)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d calls from %s\n", n, *inPath)
	return nil
}

func cmdPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("AIR_CONFIG"), "Path to YAML config")
	yes := fs.Bool("yes", false, "Confirm deleting every recorded call")
	_ = fs.Parse(args)

	if !*yes {
		return fmt.Errorf("refusing to purge without --yes")
	}

	ctx := context.Background()
	store, _, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.DeleteAll(ctx)
	if err != nil {
		return err
	}
	var n int64
	if res.RowsDeleted != nil {
		n = *res.RowsDeleted
	}
	fmt.Printf("Purge %s: %d calls deleted\n", res.Status, n)
	return nil
}

func cmdPrice(args []string) error {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	parameters := fs.String("parameters", "", "JSON grid of parameter names")
	values := fs.String("values", "", "JSON grid of parameter values")
	option1 := fs.String("option1", "", "Optional switch")
	option2 := fs.String("option2", "", "Optional switch")
	culture := fs.String("culture", "", "Optional culture, e.g. en-GB")
	_ = fs.Parse(args)

	req := pricing.Request{
		Parameters: *parameters,
		Values:     *values,
		Option1:    optional(*option1),
		Option2:    optional(*option2),
		Culture:    optional(*culture),
	}
	res, err := pricing.New(nil).Run(req)
	if err != nil {
		return err
	}

	fmt.Printf("orientation=%s scenarios=%d\n", res.Orientation, len(res.Rows))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"data": res.Rows})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
