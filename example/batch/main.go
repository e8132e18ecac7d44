package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mjuillard/veil"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

const sampleContent1 = `Compte rendu d'entretien

Mme Marie Dubois s'est présentée à l'agence de Lyon le 3 mars. Elle était
accompagnée de son conseiller, M. Bernard Martin. L'entretien portait sur
le dossier ouvert à Paris l'an dernier.`

const sampleContent2 = `Note interne

M. Bernard Martin signale que le dossier de Mme Dubois est incomplet.
Les pièces manquantes doivent être envoyées à l'agence de Lyon avant
la fin du mois.`

func main() {
	// Keep the example self contained with a throwaway store
	dir, err := os.MkdirTemp("", "veil-batch-example")
	if err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(dir)

	os.Setenv("VEIL_DB_PATH", filepath.Join(dir, "veil.db"))
	os.Setenv("VEIL_PASSPHRASE", "correct horse battery staple")
	os.Setenv("VEIL_THEME", "middleearth")

	config, err := helper.NewConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	v, err := veil.NewVeil(config)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer v.Close()

	fmt.Println("Loading NER model (downloaded on first use)...")
	if err := v.UseDefaultDetector(); err != nil {
		log.Fatalf("Failed to set up detection: %v", err)
	}

	// Write the sample documents to disk, the batch runner reads files
	inputDir := filepath.Join(dir, "in")
	if err := os.MkdirAll(inputDir, 0755); err != nil {
		log.Fatalf("Failed to create input directory: %v", err)
	}
	samples := map[string]string{
		"entretien.txt": sampleContent1,
		"note.txt":      sampleContent2,
	}
	var documents []*model.Document
	for name, content := range samples {
		path := filepath.Join(inputDir, name)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			log.Fatalf("Failed to write sample document: %v", err)
		}
		document, err := model.NewDocumentFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load sample document: %v", err)
		}
		documents = append(documents, document)
	}

	// Process both documents in one run, without interactive validation.
	// The shared store guarantees the same person gets the same pseudonym
	// in every document.
	fmt.Printf("Processing %d documents...\n", len(documents))
	batchConfig := model.DefaultBatchConfig()
	batchConfig.Workers = 2

	summary, err := v.RunBatch(context.Background(), documents, batchConfig)
	if err != nil {
		log.Fatalf("Failed to run batch: %v", err)
	}
	fmt.Printf("Processed %d documents, replaced %d occurrences (%d new mappings)\n",
		summary.Processed, summary.EntityCount, summary.NewEntities)

	for _, document := range documents {
		output, err := os.ReadFile(document.OutputPath)
		if err != nil {
			log.Fatalf("Failed to read output: %v", err)
		}
		fmt.Printf("\n--- %s ---\n%s\n", filepath.Base(document.OutputPath), output)
	}

	// Every run left a row in the audit trail
	operations, err := v.RecentOperations(10)
	if err != nil {
		log.Fatalf("Failed to read audit trail: %v", err)
	}
	fmt.Println("\nAudit trail:")
	for _, operation := range operations {
		fmt.Printf("  %s files=%d entities=%d new=%d success=%t\n",
			operation.Type, operation.Files, operation.EntityCount,
			operation.NewEntities, operation.Success)
	}

	// Erase one mapping on request, the erasure itself is audited
	entities, err := v.Entities.SelectAllEntities(v.Theme())
	if err != nil {
		log.Fatalf("Failed to list mappings: %v", err)
	}
	if len(entities) > 0 {
		first := entities[0]
		fmt.Printf("\nErasing mapping %s (%s)...\n", first.ID, first.PseudonymFull)
		if err := v.EraseEntity(first.ID, "data subject erasure request"); err != nil {
			log.Fatalf("Failed to erase mapping: %v", err)
		}
		remaining, err := v.Entities.CountEntities(v.Theme())
		if err != nil {
			log.Fatalf("Failed to count mappings: %v", err)
		}
		fmt.Printf("Mappings remaining: %d\n", remaining)
	}

	fmt.Println("\nBatch example completed successfully!")
}
