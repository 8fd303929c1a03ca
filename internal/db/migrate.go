package db

import (
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/model"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
	}
}

// Migrate runs AutoMigrate against the global connection and seeds the catalog.
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := SeedCatalog(DB); err != nil {
		logger.Error("Failed to seed initial data during migration", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

type seedProduct struct {
	name          string
	category      string
	price         float64
	originalPrice float64
	stock         int
	badge         string
	image         string
	featured      bool
	description   string
}

var seedCategories = []string{
	"Building Materials",
	"Roofing",
	"Power Tools",
	"Hand Tools",
	"Storage",
	"Measuring Tools",
	"Safety Equipment",
	"Fasteners",
	"Paint Supplies",
	"Electrical",
	"Plumbing",
}

var seedProducts = []seedProduct{
	{"Tororo Cement 50kg Bag", "Building Materials", 35000, 0, 500, "Best Seller", "/tororo-cement-bag-50kg.jpg", true,
		"Premium quality Tororo Cement 50kg bag, perfect for all construction needs. High strength and durability for foundations, walls, and structural work."},
	{"Iron Sheets 28 Gauge (3m)", "Roofing", 28000, 0, 300, "Popular", "/corrugated-iron-roofing-sheet.jpg", true,
		"High-quality corrugated iron roofing sheets, 28 gauge thickness, 3 meters length. Weather-resistant and durable for long-lasting protection."},
	{"Iron Sheets 30 Gauge (3m)", "Roofing", 25000, 27000, 300, "Sale", "/corrugated-metal-roofing-sheet.jpg", false,
		"Economical corrugated iron roofing sheets, 30 gauge thickness, 3 meters length. Ideal for residential and light commercial applications."},
	{"Professional Cordless Drill Set", "Power Tools", 550000, 650000, 25, "Sale", "/cordless-drill-set-with-battery.jpg", true,
		"Complete professional cordless drill set with battery, charger, and accessories. Variable speed control and LED work light for precision work."},
	{"Heavy Duty Tool Box", "Storage", 320000, 0, 40, "", "/red-metal-tool-box-storage.jpg", false,
		"Durable heavy-duty metal tool box with multiple compartments. Secure locking mechanism and comfortable carrying handle."},
	{"Socket Wrench Set (120pc)", "Hand Tools", 480000, 0, 30, "Popular", "/socket-wrench-set-in-case.jpg", true,
		"Comprehensive 120-piece socket wrench set with ratchets, extensions, and various socket sizes. Chrome vanadium steel construction."},
	{"Laser Level & Measuring Tool", "Measuring Tools", 290000, 350000, 20, "Sale", "/laser-level-measuring-tool.jpg", false,
		"Professional laser level with self-leveling technology. Perfect for accurate measurements and alignment in construction projects."},
	{"Tororo Cement 25kg Bag", "Building Materials", 18000, 0, 400, "New", "/small-cement-bag.jpg", false,
		"Convenient 25kg bag of premium Tororo Cement. Perfect for smaller projects and repairs. Same high quality in a more manageable size."},
}

// SeedCatalog inserts the starter categories and products into an empty
// catalog. It is a no-op once any product exists.
func SeedCatalog(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&model.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Catalog already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	logger.Info("Seeding hardware catalog...")

	return conn.Transaction(func(tx *gorm.DB) error {
		categoryIDs := make(map[string]uint, len(seedCategories))
		for _, name := range seedCategories {
			c := model.Category{Name: name}
			if err := tx.Where(model.Category{Name: name}).FirstOrCreate(&c).Error; err != nil {
				return err
			}
			categoryIDs[name] = c.ID
		}

		for _, sp := range seedProducts {
			categoryID := categoryIDs[sp.category]
			p := model.Product{
				Name:        sp.name,
				Description: sp.description,
				Price:       sp.price,
				Stock:       sp.stock,
				Badge:       sp.badge,
				CategoryID:  &categoryID,
				ImageURL:    sp.image,
				IsFeatured:  sp.featured,
			}
			if sp.originalPrice > 0 {
				op := sp.originalPrice
				p.OriginalPrice = &op
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}

		logger.Info("Catalog seeded", map[string]interface{}{
			"categories": len(seedCategories),
			"products":   len(seedProducts),
		})
		return nil
	})
}
