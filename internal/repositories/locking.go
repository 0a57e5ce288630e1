package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withUpdateLock applies SELECT ... FOR UPDATE where the dialect supports it.
// SQLite has no FOR UPDATE clause; its writes are serialized by the database
// lock, so the clause is skipped there.
func withUpdateLock(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
