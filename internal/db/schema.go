package db

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EnsureSchema creates the postgres schema that holds the store tables.
func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(schema)).Error
}
