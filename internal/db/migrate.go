package db

import (
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(&models.OpportunityRecord{})
}
