package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/app"
	"github.com/dompet-app/dompet/internal/completion"
	"github.com/dompet-app/dompet/internal/config"
	"github.com/dompet-app/dompet/internal/export"
	"github.com/dompet-app/dompet/internal/gcsuploader"
	infraBQ "github.com/dompet-app/dompet/internal/infra/bigquery"
	"github.com/dompet-app/dompet/internal/interpreter"
	"github.com/dompet-app/dompet/internal/logger"
	"github.com/dompet-app/dompet/internal/reports"
	"github.com/rs/zerolog"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := app.NewLogger(cfg, "dompet-cli")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "interpret":
		runInterpret(cfg, log)
	case "report":
		runReport(cfg, log)
	case "export":
		runExport(cfg, log)
	case "analytics":
		runAnalytics(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Dompet CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  interpret  Dry-run a free-text command through the interpreter")
	fmt.Println("  report     Print a summary, category breakdown and trend for a user")
	fmt.Println("  export     Write a CSV/XLSX report to a file, optionally uploading it to GCS")
	fmt.Println("  analytics  Print monthly totals from the BigQuery mirror")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runInterpret(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("interpret", flag.ExitOnError)
	command := fs.String("command", "", "Free-text command, e.g. \"nabung 30rb\"")
	fs.Parse(os.Args[2:])

	if *command == "" {
		log.Fatal().Msg("Usage: cli interpret -command TEXT")
	}

	ctx := logger.WithContext(context.Background(), log)

	completer, err := completion.NewGeminiCompleter(ctx, completion.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini completer")
	}

	interp := interpreter.New(completer,
		interpreter.WithTimeout(cfg.InterpretTimeout),
		interpreter.WithMaxTokens(cfg.CompletionMaxTokens),
		interpreter.WithLogger(log),
	)

	parsed, err := interp.Interpret(ctx, *command, app.Taxonomy(cfg))
	if err != nil {
		var ie *interpreter.Error
		if errors.As(err, &ie) {
			fmt.Fprintln(os.Stderr, ie.UserMessage())
		}
		log.Fatal().Err(err).Msg("Interpretation failed")
	}

	printJSON(os.Stdout, parsed)
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID whose transactions are reported")
	granularity := fs.String("granularity", "month", "Trend granularity: day or month")
	month := fs.String("month", "", "Restrict to one month (YYYY-MM) with daily buckets")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Usage: cli report -owner ID [-granularity day|month] [-month YYYY-MM] [-json]")
	}
	g, err := aggregate.ParseGranularity(*granularity)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid granularity")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, closeStore := openReports(ctx, cfg, log)
	defer closeStore()

	var report aggregate.Report
	title := "All time"
	if *month != "" {
		year, m, err := aggregate.ParseMonth(*month, svc.Location())
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid month")
		}
		monthly, err := svc.Monthly(ctx, *owner, year, m)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build monthly report")
		}
		report, title = monthly.Report, monthly.Month
	} else {
		report, err = svc.Dashboard(ctx, *owner, reports.Query{Granularity: g})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build report")
		}
	}

	if *asJSON {
		printJSON(os.Stdout, report)
		return
	}
	printReport(os.Stdout, title, report)
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID whose transactions are exported")
	format := fs.String("format", "csv", "File format: csv or xlsx")
	scope := fs.String("scope", "transactions", "Contents: transactions or trend")
	out := fs.String("out", "", "Output file (defaults to a generated name)")
	bucket := fs.String("bucket", "", "Upload the file to this GCS bucket (defaults to GCS_BUCKET when -upload is set)")
	upload := fs.Bool("upload", false, "Upload the file to GCS after writing it")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Usage: cli export -owner ID [-format csv|xlsx] [-scope transactions|trend] [-out FILE] [-upload]")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid format")
	}
	s, err := export.ParseScope(*scope)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scope")
	}

	ctx := logger.WithContext(context.Background(), log)
	svc, closeStore := openReports(ctx, cfg, log)
	defer closeStore()

	if *out == "" {
		*out = export.FileName(s, f, time.Now().In(svc.Location()))
	}
	file, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	req := reports.ExportRequest{Format: f, Scope: s, Query: reports.Query{Granularity: aggregate.Month}}
	if err := svc.Export(ctx, *owner, req, file); err != nil {
		file.Close()
		log.Fatal().Err(err).Msg("Export failed")
	}
	if err := file.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output file")
	}
	fmt.Printf("Wrote %s\n", *out)

	if !*upload {
		return
	}
	if *bucket == "" {
		*bucket = cfg.GCSBucket
	}
	if *bucket == "" {
		log.Fatal().Msg("No bucket: pass -bucket or set GCS_BUCKET")
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	object := gcsuploader.ExportObjectName(*owner, filepath.Base(*out))
	uri, err := storage.UploadFile(ctx, *bucket, object, *out)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *out, uri)
}

func runAnalytics(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analytics", flag.ExitOnError)
	owner := fs.String("owner", "", "User ID")
	from := fs.String("from", "", "First month (YYYY-MM), defaults to 11 months ago")
	to := fs.String("to", "", "Last month (YYYY-MM), defaults to the current month")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Usage: cli analytics -owner ID [-from YYYY-MM] [-to YYYY-MM]")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("BIGQUERY_PROJECT is required")
	}

	loc := cfg.Location()
	now := time.Now().In(loc)
	start, _ := aggregate.MonthRange(now.Year(), now.Month()-11, loc)
	_, end := aggregate.MonthRange(now.Year(), now.Month(), loc)
	if *from != "" {
		y, m, err := aggregate.ParseMonth(*from, loc)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -from")
		}
		start, _ = aggregate.MonthRange(y, m, loc)
	}
	if *to != "" {
		y, m, err := aggregate.ParseMonth(*to, loc)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -to")
		}
		_, end = aggregate.MonthRange(y, m, loc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mirror, err := infraBQ.NewBigQueryMirror(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer mirror.Close()

	rows, err := mirror.QueryMonthlyTotals(ctx, *owner, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query monthly totals")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Month\tIncome\tExpense\tTransactions\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t\n",
			r.Month.In(loc).Format(aggregate.MonthLabelLayout),
			r.Income.FloatString(2),
			r.Expense.FloatString(2),
			r.Transactions)
	}
	w.Flush()
}

// openReports opens the configured store and wraps it in a report service.
func openReports(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*reports.Service, func()) {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	svc := reports.NewService(st, reports.WithLocation(cfg.Location()), reports.WithLogger(log))
	return svc, func() { st.Close(context.Background()) }
}

func printReport(w io.Writer, title string, report aggregate.Report) {
	fmt.Fprintf(w, "%s (%d transactions)\n\n", title, report.Count)
	fmt.Fprintf(w, "  Income:   %s\n", report.Summary.TotalIncome)
	fmt.Fprintf(w, "  Expense:  %s\n", report.Summary.TotalExpense)
	fmt.Fprintf(w, "  Balance:  %s\n\n", report.Summary.Balance)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Category\tExpense")
	for _, c := range report.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Category, c.Total)
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Period\tIncome\tExpense\tBalance")
	for _, b := range report.Trend.Buckets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Label, b.Income, b.Expense, b.Balance)
	}
	tw.Flush()
	if report.Trend.Skipped > 0 {
		fmt.Fprintf(w, "\n%d undated transactions are not in the trend.\n", report.Trend.Skipped)
	}
}

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
