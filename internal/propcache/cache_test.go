package propcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glam-tools/wikimapper/internal/wikibase"
)

type fakeAPI struct {
	entities      map[string]wikibase.Entity
	claims        map[string][]wikibase.ConstraintClaim
	entityCalls   int
	claimCalls    int
	failEntities  bool
	failClaims    bool
	lastEntityIDs []string
}

func (f *fakeAPI) GetEntities(ctx context.Context, ids []string) (map[string]wikibase.Entity, error) {
	f.entityCalls++
	f.lastEntityIDs = ids
	if f.failEntities {
		return nil, &wikibase.TransportError{URL: "fake", Err: errors.New("connection refused")}
	}
	out := make(map[string]wikibase.Entity)
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			out[id] = e
		} else {
			out[id] = wikibase.Entity{ID: id, Missing: true}
		}
	}
	return out, nil
}

func (f *fakeAPI) GetConstraintStatements(ctx context.Context, propertyID, constraintProperty string) ([]wikibase.ConstraintClaim, error) {
	f.claimCalls++
	if f.failClaims {
		return nil, &wikibase.TransportError{URL: "fake", Err: errors.New("connection refused")}
	}
	return f.claims[propertyID], nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		entities: map[string]wikibase.Entity{
			"P31": {ID: "P31", Datatype: "wikibase-item", Label: "instance of", Description: "that class of which this subject is a particular example"},
			"P50": {ID: "P50", Datatype: "wikibase-item", Label: "author"},
			"Q5":  {ID: "Q5", Label: "human"},
		},
	}
}

func TestGetPropertyInfoCachesWithinTTL(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	first, err := cache.GetPropertyInfo(context.Background(), "P31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Label != "instance of" || first.DatatypeLabel != "Item" {
		t.Errorf("unexpected record: %+v", first)
	}

	if _, err := cache.GetPropertyInfo(context.Background(), "P31"); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if api.entityCalls != 1 {
		t.Errorf("expected 1 remote call within TTL, got %d", api.entityCalls)
	}
}

func TestGetPropertyInfoRefetchesAfterTTL(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	current := time.Now()
	cache.now = func() time.Time { return current }

	if _, err := cache.GetPropertyInfo(context.Background(), "P31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(61 * time.Minute)
	if _, err := cache.GetPropertyInfo(context.Background(), "P31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.entityCalls != 2 {
		t.Errorf("expected 2 remote calls across TTL expiry, got %d", api.entityCalls)
	}
}

func TestGetPropertyInfoNotFound(t *testing.T) {
	cache := New(newFakeAPI(), time.Hour, "P2302")

	_, err := cache.GetPropertyInfo(context.Background(), "P99999")
	var notFound *wikibase.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.ID != "P99999" {
		t.Errorf("expected id P99999 in error, got %s", notFound.ID)
	}
}

func TestGetBatchPropertyInfoSubstitutesFallbacks(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	records := cache.GetBatchPropertyInfo(context.Background(), []string{"P31", "Pxxxx-invalid"})
	if len(records) != 2 {
		t.Fatalf("expected a record for every id, got %d", len(records))
	}
	if records["P31"].Label != "instance of" {
		t.Errorf("expected real record for P31, got %+v", records["P31"])
	}
	if records["Pxxxx-invalid"].Datatype != DatatypeUnknown {
		t.Errorf("expected fallback datatype for invalid id, got %q", records["Pxxxx-invalid"].Datatype)
	}
}

func TestGetBatchPropertyInfoNeverFullyFatal(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	// warm the cache for P31, then break the transport
	if _, err := cache.GetPropertyInfo(context.Background(), "P31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api.failEntities = true

	records := cache.GetBatchPropertyInfo(context.Background(), []string{"P31", "P50"})
	if records["P31"].Label != "instance of" {
		t.Errorf("cached id should survive a dead transport, got %+v", records["P31"])
	}
	if !records["P50"].Fallback() {
		t.Errorf("uncached id should degrade to a fallback record, got %+v", records["P50"])
	}
}

func TestGetBatchPropertyInfoOnlyFetchesUncached(t *testing.T) {
	api := newFakeAPI()
	cache := New(api, time.Hour, "P2302")

	if _, err := cache.GetPropertyInfo(context.Background(), "P31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cache.GetBatchPropertyInfo(context.Background(), []string{"P31", "P50"})

	if len(api.lastEntityIDs) != 1 || api.lastEntityIDs[0] != "P50" {
		t.Errorf("expected batch to only request uncached ids, requested %v", api.lastEntityIDs)
	}
}
