package product

import (
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
)

// openPostgresDB connects to a real database when PRICESYNC_DB_DSN is set.
func openPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("PRICESYNC_DB_DSN")
	if dsn == "" {
		t.Skip("PRICESYNC_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func openSQLiteDB(t *testing.T, withImages bool) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	tables := []any{&models.Product{}, &models.ProductGalleryOverlay{}}
	if withImages {
		tables = append(tables, &models.ProductImage{})
	}
	if err := conn.AutoMigrate(tables...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, price float64, original *float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Cushion SPF50", Price: price, OriginalPrice: original, Category: "makeup", IsActive: true}
	if err := conn.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func floatPtr(v float64) *float64 { return &v }
