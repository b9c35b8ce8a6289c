package keystore

import "time"

// Document is one stored record. Body holds the JSON encoding of the typed
// record; Seq preserves insertion order for view queries.
type Document struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"size:36;uniqueIndex;not null"`
	Tag       string `gorm:"size:64;index;not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ViewEntry is one emitted (view, key) -> document row of a secondary index.
type ViewEntry struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ViewName string `gorm:"size:128;not null;index:idx_view_key,priority:1"`
	IndexKey string `gorm:"size:1024;not null;index:idx_view_key,priority:2"`
	DocID    string `gorm:"size:36;not null;index"`
	DocSeq   uint64 `gorm:"not null"`
}
