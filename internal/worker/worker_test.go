package worker

import (
	"context"
	"testing"

	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/portal"
)

func intp(v int) *int { return &v }

// fakeClient satisfies portal.Client for routing tests; it never actually
// fetches anything.
type fakeClient struct{}

func (fakeClient) Fetch(ctx context.Context, key portal.LookupKey) (*portal.FetchResult, error) {
	return nil, nil
}

func TestLookupKeyForPrefersInstrumentNumber(t *testing.T) {
	docType := "01"
	d := &model.IndexDocument{
		InstrumentNumber: intp(12345),
		Book:             intp(500),
		Page:             intp(10),
		DocumentType:     &docType,
	}
	key := lookupKeyFor(d)
	if key.InstrumentNumber != 12345 {
		t.Fatalf("expected instrument number 12345, got %d", key.InstrumentNumber)
	}
	if key.Book != 500 || key.Page != 10 {
		t.Fatalf("unexpected book/page: %+v", key)
	}
	if key.DocTypeCode != "01" {
		t.Fatalf("unexpected doc type code: %q", key.DocTypeCode)
	}
}

func TestLookupKeyForFallsBackToBookPage(t *testing.T) {
	d := &model.IndexDocument{Book: intp(100), Page: intp(5)}
	key := lookupKeyFor(d)
	if key.InstrumentNumber != 0 {
		t.Fatal("expected no instrument number")
	}
	if key.Book != 100 || key.Page != 5 {
		t.Fatalf("unexpected book/page: %+v", key)
	}
}

func TestClientsForBookRoutesHistorical(t *testing.T) {
	hist := fakeClient{}
	mid := fakeClient{}
	c := Clients{Historical: hist, Mid: mid}

	client, p, err := c.forBook(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != model.PortalHistorical {
		t.Fatalf("expected Historical portal, got %s", p)
	}
	if client != hist {
		t.Fatal("expected the historical client")
	}
}

func TestClientsForBookRoutesMid(t *testing.T) {
	hist := fakeClient{}
	mid := fakeClient{}
	c := Clients{Historical: hist, Mid: mid}

	client, p, err := c.forBook(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != model.PortalMid {
		t.Fatalf("expected Mid portal, got %s", p)
	}
	if client != mid {
		t.Fatal("expected the mid client")
	}
}

func TestClientsForBookRejectsExcludedPortal(t *testing.T) {
	c := Clients{Historical: fakeClient{}, Mid: fakeClient{}}
	_, p, err := c.forBook(5000)
	if err == nil {
		t.Fatal("expected an error for the excluded New portal")
	}
	if p != model.PortalNew {
		t.Fatalf("expected New portal reported, got %s", p)
	}
}

func TestClientsForBookRejectsNonPositive(t *testing.T) {
	c := Clients{Historical: fakeClient{}, Mid: fakeClient{}}
	if _, _, err := c.forBook(0); err == nil {
		t.Fatal("expected an error for a non-positive book")
	}
}
