package propcache

import (
	"context"
	"log/slog"

	"github.com/glam-tools/wikimapper/internal/wikibase"
)

// GetPropertyInfo returns the record for one property, fetching it if the
// cache has no fresh copy. This is the one lookup with no fallback path: a
// missing remote entity surfaces as *wikibase.NotFoundError.
func (c *Cache) GetPropertyInfo(ctx context.Context, id string) (PropertyRecord, error) {
	key := cacheKey{id: id, kind: kindInfo}
	if entry, ok := c.lookup(key); ok {
		return entry.record, nil
	}

	entities, err := c.api.GetEntities(ctx, []string{id})
	if err != nil {
		return PropertyRecord{}, err
	}
	entity, ok := entities[id]
	if !ok || entity.Missing {
		return PropertyRecord{}, &wikibase.NotFoundError{ID: id}
	}

	record := recordFromEntity(entity)
	c.store(key, cacheEntry{record: record})
	return record, nil
}

// GetBatchPropertyInfo resolves many ids at once. Cached ids are served from
// the cache; the rest go out in a single batched call. A batch is never fully
// fatal: ids the remote reports missing, and every uncached id when the whole
// request fails, come back as fallback records with datatype "unknown".
func (c *Cache) GetBatchPropertyInfo(ctx context.Context, ids []string) map[string]PropertyRecord {
	records := make(map[string]PropertyRecord, len(ids))
	var uncached []string
	for _, id := range ids {
		if entry, ok := c.lookup(cacheKey{id: id, kind: kindInfo}); ok {
			records[id] = entry.record
		} else {
			uncached = append(uncached, id)
		}
	}
	if len(uncached) == 0 {
		return records
	}

	entities, err := c.api.GetEntities(ctx, uncached)
	if err != nil {
		slog.Warn("Batch property fetch failed, substituting fallback records", "count", len(uncached), "err", err)
		for _, id := range uncached {
			records[id] = FallbackRecord(id)
		}
		return records
	}

	for _, id := range uncached {
		entity, ok := entities[id]
		if !ok || entity.Missing {
			slog.Debug("Property missing from batch response", "id", id)
			records[id] = FallbackRecord(id)
			continue
		}
		record := recordFromEntity(entity)
		c.store(cacheKey{id: id, kind: kindInfo}, cacheEntry{record: record})
		records[id] = record
	}
	return records
}

func recordFromEntity(entity wikibase.Entity) PropertyRecord {
	label := entity.Label
	if label == "" {
		label = entity.ID
	}
	return PropertyRecord{
		ID:            entity.ID,
		Datatype:      entity.Datatype,
		DatatypeLabel: DatatypeLabel(entity.Datatype),
		Label:         label,
		Description:   entity.Description,
	}
}
