package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Book{}, &Reservation{}); err != nil {
		return err
	}

	if db.IsPostgres() {
		if err := createPostgresIndexes(db.DB); err != nil {
			return err
		}
	}

	return nil
}

func createPostgresIndexes(db *gorm.DB) error {
	indexes := []string{
		// Partial index backing the per-user active reservation count
		`CREATE INDEX IF NOT EXISTS idx_reservations_active_user ON reservations(user_id) WHERE status = 'ACTIVE'`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
