package wikibase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetEntitiesMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "en")
	_, err := client.GetEntities(context.Background(), []string{"P31"})

	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError for unparseable body, got %v", err)
	}
	if formatErr.URL != server.URL {
		t.Errorf("expected the endpoint URL on the error, got %q", formatErr.URL)
	}
	if formatErr.Unwrap() == nil {
		t.Error("expected the decode error to be wrapped")
	}
}

func TestGetEntitiesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "en")
	_, err := client.GetEntities(context.Background(), []string{"P31"})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError for HTTP failure, got %v", err)
	}
	if transportErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 on the error, got %d", transportErr.StatusCode)
	}
}

func TestGetEntitiesParsesLanguageFilteredFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":{
			"P31":{"id":"P31","datatype":"wikibase-item",
				"labels":{"en":{"value":"instance of"},"de":{"value":"ist ein(e)"}},
				"descriptions":{"en":{"value":"class of the subject"}}},
			"P99999":{"id":"P99999","missing":{}}
		}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "en")
	entities, err := client.GetEntities(context.Background(), []string{"P31", "P99999"})
	if err != nil {
		t.Fatalf("GetEntities: %v", err)
	}

	p31 := entities["P31"]
	if p31.Label != "instance of" || p31.Description != "class of the subject" || p31.Datatype != "wikibase-item" {
		t.Errorf("unexpected entity: %+v", p31)
	}
	if !entities["P99999"].Missing {
		t.Error("missing entities should be flagged, not dropped")
	}
}
