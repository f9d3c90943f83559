// Command seed_catalog wipes the data files and rebuilds them with the
// bootstrap sample catalog, or with titles imported from a JSON file given as
// the first argument.
package main

import (
	"fmt"
	"os"

	"library-catalog/config"
	"library-catalog/library"
)

func main() {
	cfg := config.Load()

	fmt.Println("Removing existing data files...")
	for _, file := range []string{cfg.CatalogFile, cfg.CopiesFile} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not remove %s: %v\n", file, err)
		}
	}

	catalog, err := library.NewCatalogStore(cfg.CatalogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating catalog store: %v\n", err)
		os.Exit(1)
	}
	copies, err := library.NewCopyStore(cfg.CopiesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating copy store: %v\n", err)
		os.Exit(1)
	}
	coord := library.NewCoordinator(catalog, copies)

	if len(os.Args) > 1 {
		added, err := coord.ImportSnapshot(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", os.Args[1], err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d titles from %s\n", added, os.Args[1])
	} else {
		if err := coord.ImportSampleData(); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding sample data: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Seeded sample catalog.")
	}

	titles := coord.Titles()
	fmt.Printf("\n%-8s %-45s %-16s %s\n", "ID", "Name", "Category", "Copies")
	for _, t := range titles {
		fmt.Printf("%-8s %-45s %-16s %d\n", t.TitleID, t.Name, t.Category, coord.TotalCopies(t.TitleID))
	}
	fmt.Printf("\n%d titles written to %s\n", len(titles), cfg.CatalogFile)
}
