package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mjuillard/veil"
	"github.com/mjuillard/veil/helper"
)

const sampleContent = `Objet : réclamation de Mme Marie Dubois

Madame Marie Dubois, domiciliée à Lyon, conteste la décision rendue le mois
dernier. Son dossier a été transmis à M. Bernard Martin, du service
contentieux de Paris, qui la recontactera sous quinzaine.

Mme Dubois demande une révision complète avant la fin du mois.`

func main() {
	// Keep the example self contained with a throwaway store
	dir, err := os.MkdirTemp("", "veil-example")
	if err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(dir)

	os.Setenv("VEIL_DB_PATH", filepath.Join(dir, "veil.db"))
	os.Setenv("VEIL_PASSPHRASE", "correct horse battery staple")
	os.Setenv("VEIL_THEME", "starwars")

	config, err := helper.NewConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	v, err := veil.NewVeil(config)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer v.Close()

	// Set up the default detection pipeline (NER model + honorific patterns)
	fmt.Println("Loading NER model (downloaded on first use)...")
	if err := v.UseDefaultDetector(); err != nil {
		log.Fatalf("Failed to set up detection: %v", err)
	}

	// Pseudonymize the text in one call
	fmt.Println("Pseudonymizing document...")
	result, err := v.Pseudonymize(context.Background(), sampleContent)
	if err != nil {
		log.Fatalf("Failed to pseudonymize: %v", err)
	}

	fmt.Printf("\n--- Pseudonymized text ---\n%s\n", result.Text)
	fmt.Printf("\nReplaced %d occurrences, created %d new mappings\n",
		result.EntityCount, result.NewEntities)
	for _, assignment := range result.Assignments {
		fmt.Printf("  %s\n", assignment.Label())
	}

	// Run the same text again: every mapping is reused, nothing new is created
	again, err := v.Pseudonymize(context.Background(), sampleContent)
	if err != nil {
		log.Fatalf("Failed to pseudonymize again: %v", err)
	}
	fmt.Printf("\nSecond run: %d new mappings, %d reused (output identical: %t)\n",
		again.NewEntities, again.ReusedEntities, again.Text == result.Text)

	// Show how much of the theme's pools the store consumed
	usages, err := v.Usage()
	if err != nil {
		log.Fatalf("Failed to read pool usage: %v", err)
	}
	fmt.Printf("\nPool usage for theme %q:\n", v.Theme())
	for _, usage := range usages {
		fmt.Printf("  %-12s %d/%d (%.1f%%)\n", usage.Type, usage.Used, usage.Size, usage.Pct())
	}

	fmt.Println("\nBasic example completed successfully!")
}
