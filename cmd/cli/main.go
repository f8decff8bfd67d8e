package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-classifier/internal/classify"
	"github.com/dvloznov/expense-classifier/internal/config"
	"github.com/dvloznov/expense-classifier/internal/corrections"
	"github.com/dvloznov/expense-classifier/internal/gcs"
	infraBQ "github.com/dvloznov/expense-classifier/internal/infra/bigquery"
	"github.com/dvloznov/expense-classifier/internal/infra/memory"
	"github.com/dvloznov/expense-classifier/internal/logger"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(log)
	case "upload":
		runUpload(log)
	case "classify":
		runClassify(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Expense Classifier CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import and classify a local bank statement (CSV or Excel)")
	fmt.Println("  upload    Upload a statement file to GCS")
	fmt.Println("  classify  Classify a single expense description")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement file")
	dryRun := fs.Bool("dry-run", false, "Classify without persisting to BigQuery")
	fs.Parse(os.Args[2:])

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := config.Load(log)
	ctx := logger.WithContext(context.Background(), log)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read statement")
	}

	var (
		repo  pipeline.ExpenseRepository
		store corrections.Store
	)
	if *dryRun || cfg.ProjectID == "" {
		if !*dryRun {
			log.Warn().Msg("GOOGLE_CLOUD_PROJECT not set - results will not be persisted")
		}
		repo = memory.NewRepository()
		store = corrections.NewMemoryStore()
	} else {
		bqRepo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer bqRepo.Close()
		repo = bqRepo
		store = bqRepo
	}

	importer := &pipeline.Importer{
		Classifier:  classify.New(classify.DefaultTaxonomy(), cfg.Providers(ctx, log)...),
		Corrections: store,
		Expenses:    repo,
	}

	result, err := importer.ImportFile(ctx, data, filepath.Base(*file))
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d of %d rows (%d skipped) from %s in %s\n",
		result.Imported, result.TotalRows, result.Skipped, result.Filename, result.ElapsedTime.Round(time.Millisecond))
	for _, provider := range sortedKeys(result.ByProvider) {
		fmt.Printf("  %-10s %d\n", provider, result.ByProvider[provider])
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "Path to the statement file")
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket (or set GCS_BUCKET env)")
	fs.Parse(os.Args[2:])

	if *file == "" || *bucket == "" {
		fmt.Fprintln(os.Stderr, "Error: -file and -bucket are required")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open statement")
	}
	defer f.Close()

	client, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer client.Close()

	objectName := fmt.Sprintf("imports/%s/%s", time.Now().Format("2006/01/02"), filepath.Base(*file))
	uri, err := client.Upload(ctx, *bucket, objectName, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded to %s\n", uri)
}

func runClassify(log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	description := fs.String("description", "", "Expense description")
	amount := fs.Float64("amount", 0, "Expense amount (negative for spending)")
	fs.Parse(os.Args[2:])

	if *description == "" {
		fmt.Fprintln(os.Stderr, "Error: -description is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg := config.Load(log)
	ctx := logger.WithContext(context.Background(), log)

	classifier := classify.New(classify.DefaultTaxonomy(), cfg.Providers(ctx, log)...)
	cl := classifier.Classify(ctx, *description, *amount, nil)

	source := cl.Provider
	if cl.Provenance == classify.ProvenanceFallback {
		source = "fallback rules"
	}
	fmt.Printf("%s / %s (%s)\n", cl.Category, cl.Subcategory, source)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
