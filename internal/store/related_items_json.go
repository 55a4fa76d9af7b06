package store

import (
	"encoding/json"

	"github.com/local/titleplant/internal/model"
)

// unmarshalRelatedItems decodes the related_items JSONB column.
func unmarshalRelatedItems(s string) ([]model.RelatedItem, error) {
	var items []model.RelatedItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarshalRelatedItems encodes a related-items slice for storage, used by
// internal/related when writing the enriched column back.
func MarshalRelatedItems(items []model.RelatedItem) (string, error) {
	if items == nil {
		items = []model.RelatedItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
