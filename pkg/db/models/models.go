package models

// All lists every model for gorm AutoMigrate in SQLite dev mode and tests.
func All() []any {
	return []any{
		&Product{},
		&ProductImage{},
		&ProductMetadataOverlay{},
		&ProductGalleryOverlay{},
	}
}
