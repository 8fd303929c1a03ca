package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/util"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const batchSize = 500

// productRow is one spreadsheet line. Columns are matched by header name,
// so their order in the sheet does not matter.
type productRow struct {
	Name          string
	Category      string
	Price         float64
	OriginalPrice *float64
	Stock         int
	Badge         string
	ImageURL      string
	Description   string
	Featured      bool
}

var headerAliases = map[string]string{
	"name":           "name",
	"product":        "name",
	"category":       "category",
	"price":          "price",
	"original price": "original_price",
	"original_price": "original_price",
	"stock":          "stock",
	"quantity":       "stock",
	"badge":          "badge",
	"image":          "image_url",
	"image_url":      "image_url",
	"description":    "description",
	"featured":       "featured",
}

func readProductsFromXLSX(filePath string) ([]productRow, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[key] = i
		}
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := columns[required]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", required)
		}
	}

	cell := func(row []string, key string) string {
		i, ok := columns[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var products []productRow
	seen := make(map[string]bool)
	skipped := 0

	for _, row := range rows[1:] {
		p := productRow{
			Name:        cell(row, "name"),
			Category:    cell(row, "category"),
			Badge:       cell(row, "badge"),
			ImageURL:    cell(row, "image_url"),
			Description: cell(row, "description"),
		}

		price, err := parseAmount(cell(row, "price"))
		if p.Name == "" || err != nil || price <= 0 {
			skipped++
			continue
		}
		p.Price = price

		if raw := cell(row, "original_price"); raw != "" {
			op, err := parseAmount(raw)
			if err != nil || op < price {
				skipped++
				continue
			}
			p.OriginalPrice = &op
		}
		if raw := cell(row, "stock"); raw != "" {
			stock, err := strconv.Atoi(raw)
			if err != nil || stock < 0 {
				skipped++
				continue
			}
			p.Stock = stock
		}
		switch strings.ToLower(cell(row, "featured")) {
		case "yes", "y", "true", "1":
			p.Featured = true
		}

		key := strings.ToLower(p.Name)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true
		products = append(products, p)
	}

	return products, skipped, nil
}

// parseAmount accepts "38,000", "UGX 38000" and plain numbers.
func parseAmount(raw string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", " ", "", "UGX", "", "ugx", "").Replace(raw)
	return strconv.ParseFloat(cleaned, 64)
}

type importResult struct {
	Created       int
	Existing      int
	NewCategories int
}

// importProducts creates missing categories by name and inserts products
// whose name is not in the catalog yet. Running it twice is harmless.
func importProducts(conn *gorm.DB, rows []productRow) (importResult, error) {
	var result importResult

	err := conn.Transaction(func(tx *gorm.DB) error {
		categoryIDs := make(map[string]uint)
		var toCreate []model.Product

		for _, row := range rows {
			var count int64
			if err := tx.Model(&model.Product{}).Where("LOWER(name) = ?", strings.ToLower(row.Name)).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				result.Existing++
				continue
			}

			product := model.Product{
				Name:          row.Name,
				Description:   row.Description,
				Price:         row.Price,
				OriginalPrice: row.OriginalPrice,
				Stock:         row.Stock,
				Badge:         row.Badge,
				ImageURL:      row.ImageURL,
				IsFeatured:    row.Featured,
			}

			if row.Category != "" {
				id, ok := categoryIDs[row.Category]
				if !ok {
					category := model.Category{Name: row.Category, Slug: util.Slugify(row.Category)}
					res := tx.Where(model.Category{Slug: category.Slug}).FirstOrCreate(&category)
					if res.Error != nil {
						return res.Error
					}
					if res.RowsAffected > 0 {
						result.NewCategories++
					}
					id = category.ID
					categoryIDs[row.Category] = id
				}
				product.CategoryID = &id
			}

			toCreate = append(toCreate, product)
		}

		if len(toCreate) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(toCreate, batchSize).Error; err != nil {
			return err
		}
		result.Created = len(toCreate)
		return nil
	})

	return result, err
}
