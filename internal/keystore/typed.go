package keystore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Doc pairs a decoded record with its document id.
type Doc[T any] struct {
	ID    string
	Value T
}

// Load fetches and decodes a single document.
func Load[T any](ctx context.Context, s *Store, id string) (T, error) {
	var out T
	err := s.Get(ctx, id, &out)
	return out, err
}

// Find runs a view query and decodes every matching document, preserving
// the query order.
func Find[T any](ctx context.Context, s *Store, v View, key Key) ([]Doc[T], error) {
	ids, err := s.Query(ctx, v, key)
	if err != nil {
		return nil, err
	}
	return loadMany[T](ctx, s, ids)
}

// FindByTag decodes every document carrying tag.
func FindByTag[T any](ctx context.Context, s *Store, tag Tag) ([]Doc[T], error) {
	ids, err := s.IDsByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	return loadMany[T](ctx, s, ids)
}

const loadChunk = 500

func loadMany[T any](ctx context.Context, s *Store, ids []string) ([]Doc[T], error) {
	out := make([]Doc[T], 0, len(ids))
	for start := 0; start < len(ids); start += loadChunk {
		end := min(start+loadChunk, len(ids))
		chunk := ids[start:end]

		var docs []Document
		if err := s.db.WithContext(ctx).Where("id IN ?", chunk).Find(&docs).Error; err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		byID := make(map[string]Document, len(docs))
		for _, d := range docs {
			byID[d.ID] = d
		}
		for _, id := range chunk {
			d, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			var v T
			if err := json.Unmarshal([]byte(d.Body), &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", id, err)
			}
			out = append(out, Doc[T]{ID: id, Value: v})
		}
	}
	return out, nil
}
