package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/db"
)

func main() {
	yes := flag.Bool("yes", false, "import without asking for confirmation")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: seed [-yes] <catalog.xlsx>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	rows, skipped, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	fmt.Printf("Products to import: %d (skipped rows: %d)\n", len(rows), skipped)

	if !*yes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	result, err := importProducts(db.GetDB(), rows)
	if err != nil {
		log.Fatal("Failed to import products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("  Products created:   %d\n", result.Created)
	fmt.Printf("  Already present:    %d\n", result.Existing)
	fmt.Printf("  Categories created: %d\n", result.NewCategories)
}
