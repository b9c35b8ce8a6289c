// Package keystore is a small document store on top of gorm. Records are
// stored as JSON documents grouped by tag, and each registered View keeps a
// secondary index of composite keys that is rewritten whenever a document
// is written.
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrUnknownView   = errors.New("unknown view")
	ErrDuplicateView = errors.New("duplicate view")
)

// Store provides document and view operations. It does not coordinate
// concurrent writers; batch steps are expected to run one at a time.
type Store struct {
	db    *gorm.DB
	views map[string]View
	byTag map[Tag][]View
}

// New builds a Store over db with the full set of views it will ever query.
// A view name may only be registered once.
func New(db *gorm.DB, views ...View) (*Store, error) {
	s := &Store{
		db:    db,
		views: make(map[string]View, len(views)),
		byTag: make(map[Tag][]View),
	}
	for _, v := range views {
		if v.name == "" || v.emit == nil {
			return nil, fmt.Errorf("%w: view must be created with NewView", ErrUnknownView)
		}
		if _, ok := s.views[v.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateView, v.name)
		}
		s.views[v.name] = v
		s.byTag[v.tag] = append(s.byTag[v.tag], v)
	}
	return s, nil
}

// AutoMigrate creates or updates the document and view tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Document{}, &ViewEntry{}); err != nil {
		return fmt.Errorf("auto-migrate keystore: %w", err)
	}
	return nil
}

// Put stores rec under tag with a new identifier and indexes it.
func (s *Store) Put(ctx context.Context, tag Tag, rec any) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", tag, err)
	}
	doc := Document{ID: uuid.NewString(), Tag: string(tag), Body: string(body)}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return fmt.Errorf("insert %s: %w", tag, err)
		}
		return s.index(tx, doc)
	})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Update replaces the body of an existing document in place and re-indexes
// it. The document keeps its identifier, tag and insertion sequence.
func (s *Store) Update(ctx context.Context, id string, rec any) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		if err := tx.Where("id = ?", id).First(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return fmt.Errorf("load %s: %w", id, err)
		}
		doc.Body = string(body)
		if err := tx.Save(&doc).Error; err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
		return s.index(tx, doc)
	})
}

// Get decodes the document with the given id into out.
func (s *Store) Get(ctx context.Context, id string, out any) error {
	var doc Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(doc.Body), out); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	return nil
}

// Query returns the ids of documents whose key in view v equals key, in
// insertion order. No match is an empty slice, not an error.
func (s *Store) Query(ctx context.Context, v View, key Key) ([]string, error) {
	if _, ok := s.views[v.name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, v.name)
	}
	enc, err := key.encode()
	if err != nil {
		return nil, err
	}

	ids := []string{}
	err = s.db.WithContext(ctx).
		Model(&ViewEntry{}).
		Where(&ViewEntry{ViewName: v.name, IndexKey: enc}).
		Order("doc_seq ASC").
		Pluck("doc_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", v.name, enc, err)
	}
	return ids, nil
}

// IDsByTag returns every document id carrying tag, in insertion order.
func (s *Store) IDsByTag(ctx context.Context, tag Tag) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).
		Model(&Document{}).
		Where("tag = ?", string(tag)).
		Order("seq ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", tag, err)
	}
	return ids, nil
}

// Delete removes one document and its view entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doc_id = ?", id).Delete(&ViewEntry{}).Error; err != nil {
			return fmt.Errorf("delete %s view entries: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&Document{})
		if res.Error != nil {
			return fmt.Errorf("delete %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
}

// DeleteByTag removes every document carrying tag along with its view
// entries, returning the number of documents removed.
func (s *Store) DeleteByTag(ctx context.Context, tag Tag) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&Document{}).Select("id").Where("tag = ?", string(tag))
		if err := tx.Where("doc_id IN (?)", sub).Delete(&ViewEntry{}).Error; err != nil {
			return fmt.Errorf("delete %s view entries: %w", tag, err)
		}
		res := tx.Where("tag = ?", string(tag)).Delete(&Document{})
		if res.Error != nil {
			return fmt.Errorf("delete %s: %w", tag, res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// Reindex drops every view entry and recomputes all registered views from
// the stored documents. It returns the number of entries written.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	written := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ViewEntry{}).Error; err != nil {
			return fmt.Errorf("clear view entries: %w", err)
		}
		var batch []Document
		return tx.Model(&Document{}).FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
			for _, doc := range batch {
				n, err := s.entries(doc)
				if err != nil {
					return err
				}
				if len(n) == 0 {
					continue
				}
				if err := tx.Create(&n).Error; err != nil {
					return fmt.Errorf("reindex %s: %w", doc.ID, err)
				}
				written += len(n)
			}
			return nil
		}).Error
	})
	return written, err
}

func (s *Store) index(tx *gorm.DB, doc Document) error {
	if err := tx.Where("doc_id = ?", doc.ID).Delete(&ViewEntry{}).Error; err != nil {
		return fmt.Errorf("clear index %s: %w", doc.ID, err)
	}
	entries, err := s.entries(doc)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("index %s: %w", doc.ID, err)
	}
	return nil
}

func (s *Store) entries(doc Document) ([]ViewEntry, error) {
	var out []ViewEntry
	for _, v := range s.byTag[Tag(doc.Tag)] {
		keys, err := v.emit([]byte(doc.Body))
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			enc, err := k.encode()
			if err != nil {
				return nil, err
			}
			out = append(out, ViewEntry{ViewName: v.name, IndexKey: enc, DocID: doc.ID, DocSeq: doc.Seq})
		}
	}
	return out, nil
}
