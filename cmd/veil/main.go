package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mjuillard/veil"
	"github.com/mjuillard/veil/core/batch"
	"github.com/mjuillard/veil/core/pseudonym"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

func main() {
	inFlag := flag.String("in", "", "Input text file to pseudonymize")
	outFlag := flag.String("out", "", "Output path (default: input with _pseudonymized suffix)")
	dirFlag := flag.String("dir", "", "Directory of .txt files to process as a batch")
	outDirFlag := flag.String("out-dir", "", "Directory for batch outputs (default: next to each input)")
	themeFlag := flag.String("theme", "", "Pseudonym theme (overrides VEIL_THEME)")
	typesFlag := flag.String("types", "", "Comma separated entity types to replace, e.g. PERSON,LOCATION")
	yesFlag := flag.Bool("yes", false, "Skip interactive validation and accept all proposals")
	workersFlag := flag.Int("workers", 1, "Parallel workers for batch processing")
	dbFlag := flag.String("db", "", "Store path (overrides VEIL_DB_PATH)")
	listThemesFlag := flag.Bool("list-themes", false, "List available themes and exit")
	auditFlag := flag.Int("audit", 0, "Print the last N audit entries and exit")
	eraseFlag := flag.String("erase", "", "Erase the mapping with this id and exit")
	reasonFlag := flag.String("reason", "", "Reason recorded with -erase")
	flag.Parse()

	// Listing themes needs neither a store nor a passphrase.
	if *listThemesFlag {
		library, err := pseudonym.NewLibrary()
		if err != nil {
			log.Fatalf("Failed to load themes: %v", err)
		}
		for _, name := range library.Names() {
			fmt.Println(name)
		}
		return
	}

	// Flags override the environment the configuration is read from.
	if *dbFlag != "" {
		os.Setenv("VEIL_DB_PATH", *dbFlag)
	}
	if *themeFlag != "" {
		os.Setenv("VEIL_THEME", *themeFlag)
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := helper.NewConfiguration()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	v, err := veil.NewVeil(config)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer v.Close()

	switch {
	case *auditFlag > 0:
		printAudit(v, *auditFlag)
		return
	case *eraseFlag != "":
		eraseMapping(v, *eraseFlag, *reasonFlag)
		return
	}

	if *inFlag == "" && *dirFlag == "" {
		flag.Usage()
		log.Fatal("Please provide -in or -dir (or -audit, -erase, -list-themes)")
	}

	detectorConfig := model.DefaultDetectorConfig()
	if *typesFlag != "" {
		types, err := parseTypes(*typesFlag)
		if err != nil {
			log.Fatalf("Invalid -types: %v", err)
		}
		detectorConfig.Types = types
	}

	fmt.Println("Loading NER model (downloaded on first use)...")
	if err := v.UseDetector(&detectorConfig); err != nil {
		log.Fatalf("Failed to set up detection: %v", err)
	}

	v.Notifier = func(message string) {
		fmt.Println(message)
	}

	if *inFlag != "" {
		processFile(ctx, v, *inFlag, *outFlag, *yesFlag)
		return
	}

	processBatch(ctx, v, *dirFlag, *outDirFlag, *yesFlag, *workersFlag)
}

func processFile(ctx context.Context, v *veil.Veil, inputPath string, outputPath string, yes bool) {
	var validate batch.ValidateFunc
	if !yes {
		reader := bufio.NewReader(os.Stdin)
		validate = func(ctx context.Context, document *model.Document, assignments []model.Assignment) ([]model.DetectedEntity, error) {
			return promptAssignments(reader, document, assignments)
		}
	}

	result, err := v.Process(ctx, inputPath, outputPath, validate)
	switch {
	case errors.Is(err, model.ErrSkipped):
		warnColor.Println("Document skipped, nothing written.")
		return
	case errors.Is(err, model.ErrCancelled):
		warnColor.Println("Cancelled, nothing written.")
		os.Exit(1)
	case err != nil:
		log.Fatalf("Processing failed: %v", err)
	}

	successColor.Printf("Wrote %s\n", result.Document.OutputPath)
	fmt.Printf("Replaced %d occurrences (%d new mappings, %d reused) in %v\n",
		result.EntityCount, result.NewEntities, result.ReusedEntities,
		result.Duration.Round(time.Millisecond))
}

func processBatch(ctx context.Context, v *veil.Veil, dir string, outDir string, yes bool, workers int) {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	documents, err := collectDocuments(dir, outDir)
	if err != nil {
		log.Fatalf("Failed to read batch directory: %v", err)
	}
	if len(documents) == 0 {
		log.Fatalf("No .txt files found in %s", dir)
	}

	fmt.Printf("Processing %d documents with %d workers...\n", len(documents), workers)

	config := model.DefaultBatchConfig()
	config.Workers = workers
	config.SkipValidation = yes

	runner, err := v.Batch(config)
	if err != nil {
		log.Fatalf("Failed to create batch runner: %v", err)
	}

	reviewDone := make(chan struct{})
	go func() {
		defer close(reviewDone)
		reader := bufio.NewReader(os.Stdin)
		for request := range runner.Validations() {
			approved, err := promptAssignments(reader, request.Document, request.Assignments)
			if err != nil {
				if errors.Is(err, model.ErrSkipped) {
					request.Skip()
					continue
				}
				// Quit or closed stdin cancels the whole run, the runner
				// wakes the waiting worker itself.
				runner.Cancel()
				continue
			}
			request.Reply(approved)
		}
	}()

	summary, runErr := runner.Run(ctx, documents)
	<-reviewDone

	if summary != nil {
		if err := v.RecordBatch(summary); err != nil {
			warnColor.Printf("Audit write failed: %v\n", err)
		}
		printSummary(summary)
	}
	if runErr != nil {
		if errors.Is(runErr, model.ErrCancelled) {
			warnColor.Println("Run cancelled, pending outputs removed.")
			os.Exit(1)
		}
		log.Fatalf("Batch failed: %v", runErr)
	}
}

func collectDocuments(dir string, outDir string) ([]*model.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var documents []*model.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		// Outputs of earlier runs are not inputs.
		if strings.Contains(entry.Name(), model.DefaultBatchConfig().OutputSuffix) {
			continue
		}

		document, err := model.NewDocumentFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if outDir != "" {
			document.OutputPath = filepath.Join(outDir, entry.Name())
		}
		documents = append(documents, document)
	}
	return documents, nil
}

// promptAssignments shows the proposed replacements and reads the
// reviewer's decision. Selections are 1-based indexes into the list.
func promptAssignments(reader *bufio.Reader, document *model.Document, assignments []model.Assignment) ([]model.DetectedEntity, error) {
	if len(assignments) == 0 {
		fmt.Printf("\n%s: no entities found, writing an unchanged copy.\n", document.Name)
		return nil, nil
	}

	headerColor.Printf("\n%s: %d proposed replacements\n", document.Name, len(assignments))
	for i, assignment := range assignments {
		fmt.Printf("  [%d] %s\n", i+1, assignment.Label())
	}

	for {
		fmt.Print("Apply [a]ll, [s]kip document, [q]uit, or keep a subset (e.g. 1,3): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, model.ErrCancelled
		}

		choice := strings.ToLower(strings.TrimSpace(line))
		switch choice {
		case "", "a", "all", "y", "yes":
			approved := make([]model.DetectedEntity, 0, len(assignments))
			for _, assignment := range assignments {
				approved = append(approved, assignment.Detection)
			}
			return approved, nil
		case "s", "skip":
			return nil, model.ErrSkipped
		case "q", "quit":
			return nil, model.ErrCancelled
		}

		approved, err := selectSubset(assignments, choice)
		if err != nil {
			warnColor.Printf("%v\n", err)
			continue
		}
		return approved, nil
	}
}

func selectSubset(assignments []model.Assignment, choice string) ([]model.DetectedEntity, error) {
	keep := map[int]bool{}
	for _, field := range strings.Split(choice, ",") {
		index, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || index < 1 || index > len(assignments) {
			return nil, fmt.Errorf("invalid selection %q, expected numbers between 1 and %d", field, len(assignments))
		}
		keep[index-1] = true
	}

	approved := make([]model.DetectedEntity, 0, len(keep))
	for i, assignment := range assignments {
		if keep[i] {
			approved = append(approved, assignment.Detection)
		}
	}
	return approved, nil
}

func printSummary(summary *model.BatchSummary) {
	fmt.Println()
	headerColor.Println("Batch summary")
	fmt.Printf("  processed: %d\n", summary.Processed)
	fmt.Printf("  failed:    %d\n", summary.Failed)
	fmt.Printf("  skipped:   %d\n", summary.Skipped)
	fmt.Printf("  entities:  %d (%d new)\n", summary.EntityCount, summary.NewEntities)
	fmt.Printf("  duration:  %v\n", summary.Duration.Round(time.Millisecond))
	for _, failure := range summary.Failures {
		warnColor.Printf("  failed %s: %s\n", failure.Document, failure.Reason)
	}
}

func printAudit(v *veil.Veil, limit int) {
	operations, err := v.RecentOperations(limit)
	if err != nil {
		log.Fatalf("Failed to read audit trail: %v", err)
	}
	if len(operations) == 0 {
		fmt.Println("Audit trail is empty.")
		return
	}

	for _, operation := range operations {
		status := successColor.Sprint("ok")
		if !operation.Success {
			status = warnColor.Sprint("failed")
		}
		line := fmt.Sprintf("%s  %-8s theme=%s files=%d entities=%d new=%d [%s]",
			operation.CreatedAt.Format(time.RFC3339), operation.Type, operation.Theme,
			operation.Files, operation.EntityCount, operation.NewEntities, status)
		if operation.ErrorSummary != "" {
			line += " " + operation.ErrorSummary
		}
		fmt.Println(line)
	}
}

func eraseMapping(v *veil.Veil, id string, reason string) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		log.Fatalf("Invalid mapping id %q: %v", id, err)
	}
	if err := v.EraseEntity(parsed, reason); err != nil {
		log.Fatalf("Erasure failed: %v", err)
	}
	successColor.Println("Mapping erased and recorded in the audit trail.")
}

func parseTypes(value string) ([]model.EntityType, error) {
	var types []model.EntityType
	for _, field := range strings.Split(value, ",") {
		entityType, err := model.ParseEntityType(field)
		if err != nil {
			return nil, err
		}
		types = append(types, entityType)
	}
	return types, nil
}
